package grpcclient

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func numberField(s *structpb.Struct, key string) float64 {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetNumberValue()
	}
	return 0
}

func bytesField(s *structpb.Struct, key string) ([]byte, error) {
	raw := stringField(s, key)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return b, nil
}

func encodeBytes(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func segmentsField(s *structpb.Struct, key string) []Segment {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil
	}
	list := v.GetListValue().GetValues()
	out := make([]Segment, 0, len(list))
	for _, item := range list {
		st := item.GetStructValue()
		if st == nil {
			continue
		}
		out = append(out, Segment{
			Text:  stringField(st, "text"),
			Start: numberField(st, "start"),
			End:   numberField(st, "end"),
		})
	}
	return out
}
