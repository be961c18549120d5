package producer

import (
	"math"
	"strconv"
	"strings"
)

// Encoding is the subset of an RTP sending encoding this package needs
// to derive resolution scalings and apply network priority/dtx (spec
// §4.3's resolution-scaling algorithm and encoding decoration rules).
type Encoding struct {
	ScaleResolutionDownBy *float64
	ScalabilityMode       string
	NetworkPriority       string
	Dtx                   bool
	MaxBitrate            int
}

// GetResolutionScalings implements spec §4.3's "resolution scaling
// algorithm" and the worked examples of spec §8:
//
//	[{scalabilityMode:'S3T3_KEY'}] → [4, 2, 1]
//	[{}, {}, {}] (no scaleResolutionDownBy) → [4, 2, 1]
//	[{scaleResolutionDownBy: 0.5}, {}] → [1.0, 1.0]
func GetResolutionScalings(encodings []Encoding) []float64 {
	if len(encodings) == 1 {
		if layers := spatialLayersFromScalabilityMode(encodings[0].ScalabilityMode); layers > 0 {
			return powersOfTwoDescending(layers)
		}
	}

	anyDefined := false
	for _, e := range encodings {
		if e.ScaleResolutionDownBy != nil {
			anyDefined = true
			break
		}
	}

	if !anyDefined {
		return powersOfTwoDescending(len(encodings))
	}

	out := make([]float64, len(encodings))
	for i, e := range encodings {
		if e.ScaleResolutionDownBy == nil {
			out[i] = 1.0
			continue
		}
		out[i] = math.Max(1.0, *e.ScaleResolutionDownBy)
	}
	return out
}

func powersOfTwoDescending(n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Pow(2, float64(n-1-i))
	}
	return out
}

// spatialLayersFromScalabilityMode parses the "L<n>T<m>..." prefix of a
// mediasoup scalabilityMode string (e.g. "S3T3_KEY", "L2T3_KEY") into
// its spatial layer count. Returns 0 if unparseable.
func spatialLayersFromScalabilityMode(mode string) int {
	mode = strings.ToUpper(mode)
	var marker byte
	switch {
	case strings.HasPrefix(mode, "S"):
		marker = 'S'
	case strings.HasPrefix(mode, "L"):
		marker = 'L'
	default:
		return 0
	}

	i := 1
	for i < len(mode) && mode[i] >= '0' && mode[i] <= '9' {
		i++
	}
	if i == 1 {
		return 0
	}
	n, err := strconv.Atoi(mode[1:i])
	if err != nil {
		return 0
	}
	_ = marker
	return n
}
