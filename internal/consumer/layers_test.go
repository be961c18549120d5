package consumer

import "testing"

func TestAdaptPreferredLayersWorkedExample(t *testing.T) {
	spatial, _ := AdaptPreferredLayers([]float64{4, 2, 1}, 1280, 720, 3, 320, 180, 0.75)
	if spatial != 0 {
		t.Fatalf("expected preferred spatial layer 0, got %d", spatial)
	}
}

func TestAdaptPreferredLayersPicksHighestViableLayer(t *testing.T) {
	spatial, _ := AdaptPreferredLayers([]float64{4, 2, 1}, 1280, 720, 3, 1280, 720, 0.75)
	if spatial != 2 {
		t.Fatalf("expected full-size viewport to pick the highest spatial layer (2), got %d", spatial)
	}
}

func TestAdaptPreferredLayersDropsTemporalOnVerySmallViewport(t *testing.T) {
	// Viewport below both half and a quarter of the lowest spatial
	// level drops the starting temporal layer (temporalLayers-1 = 2)
	// twice, clamped at 0.
	_, temporal := AdaptPreferredLayers([]float64{4, 2, 1}, 1280, 720, 3, 40, 20, 0.75)
	if temporal != 0 {
		t.Fatalf("expected temporal layer 0 for a very small viewport, got %d", temporal)
	}
}
