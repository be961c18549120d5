package consumer

import "math"

// AdaptPreferredLayers implements spec §4.4's
// adaptConsumerPreferredLayers algorithm and its worked example (spec
// §8): resolutionScalings=[4,2,1], width=1280, height=720,
// viewportWidth=320, viewportHeight=180, F=0.75 → spatial layer 0.
//
// scalingFactor is clamped to [0.5, 1.0] by the caller (config's
// ClampAdaptiveScalingFactor), not here.
func AdaptPreferredLayers(resolutionScalings []float64, width, height, temporalLayers int, viewportWidth, viewportHeight int, scalingFactor float64) (spatial, temporal int) {
	if len(resolutionScalings) == 0 {
		return 0, 0
	}

	spatial = 0
	for i := len(resolutionScalings) - 1; i >= 0; i-- {
		scaledWidth := float64(width) / resolutionScalings[i]
		scaledHeight := float64(height) / resolutionScalings[i]
		if float64(viewportWidth) >= scalingFactor*scaledWidth || float64(viewportHeight) >= scalingFactor*scaledHeight {
			spatial = i
			break
		}
	}

	temporal = temporalLayers - 1
	if temporal < 0 {
		temporal = 0
	}

	if spatial == 0 {
		lowestWidth := float64(width) / resolutionScalings[0]
		lowestHeight := float64(height) / resolutionScalings[0]

		if float64(viewportWidth) < lowestWidth/2 && float64(viewportHeight) < lowestHeight/2 {
			temporal = maxInt(temporal-1, 0)
		}
		if float64(viewportWidth) < lowestWidth/4 && float64(viewportHeight) < lowestHeight/4 {
			temporal = maxInt(temporal-1, 0)
		}
	}

	return spatial, temporal
}

func maxInt(a, b int) int {
	return int(math.Max(float64(a), float64(b)))
}
