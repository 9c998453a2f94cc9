package adc

import "fmt"

// Channel identifies one analog input line of the converter.
type Channel uint8

const (
	CH0 Channel = iota
	CH1
	CH2
	CH3
	CH4
	CH5
	CH6
	CH7
)

const (
	// NumChannels is the number of single-ended inputs of the front end.
	NumChannels = 8

	// MaxRaw is the largest reading of a 10-bit converter.
	MaxRaw = 1023
)

func (c Channel) Valid() bool {
	return c < NumChannels
}

func (c Channel) String() string {
	return fmt.Sprintf("CH_%d", uint8(c))
}

// ParseChannel accepts "CH_3", "ch3" or "3".
func ParseChannel(s string) (Channel, error) {
	var n int
	for _, format := range []string{"CH_%d", "ch_%d", "CH%d", "ch%d", "%d"} {
		if _, err := fmt.Sscanf(s, format, &n); err == nil {
			if n < 0 || n >= NumChannels {
				return 0, fmt.Errorf("channel %d out of range [0,%d)", n, NumChannels)
			}
			return Channel(n), nil
		}
	}
	return 0, fmt.Errorf("unknown channel: %q", s)
}
