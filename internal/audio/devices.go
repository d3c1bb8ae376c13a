package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Device describes an audio endpoint.
type Device struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"hostApi"`
	MaxInputChannels  int     `json:"maxInputChannels"`
	MaxOutputChannels int     `json:"maxOutputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
	Source            string  `json:"source,omitempty"`
	Excluded          bool    `json:"excluded,omitempty"`
}

// ListDevices enumerates every device portaudio reports, marking how capture
// would classify it.
func ListDevices(excluded []string) ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return describe(infos, excluded), nil
}

func describe(infos []*portaudio.DeviceInfo, excluded []string) []Device {
	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		d := Device{
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Excluded:          isExcluded(info.Name, excluded),
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		if info.MaxInputChannels > 0 {
			d.Source = classifyDevice(info.Name)
		}
		out = append(out, d)
	}
	return out
}
