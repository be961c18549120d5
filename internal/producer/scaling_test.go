package producer

import (
	"reflect"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestGetResolutionScalingsSVC(t *testing.T) {
	got := GetResolutionScalings([]Encoding{{ScalabilityMode: "S3T3_KEY"}})
	want := []float64{4, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGetResolutionScalingsSimulcastNoneDefined(t *testing.T) {
	got := GetResolutionScalings([]Encoding{{}, {}, {}})
	want := []float64{4, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGetResolutionScalingsSimulcastPartiallyDefinedClampsUp(t *testing.T) {
	got := GetResolutionScalings([]Encoding{{ScaleResolutionDownBy: ptr(0.5)}, {}})
	want := []float64{1.0, 1.0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestGetResolutionScalingsSimulcastAllDefined(t *testing.T) {
	got := GetResolutionScalings([]Encoding{
		{ScaleResolutionDownBy: ptr(4)},
		{ScaleResolutionDownBy: ptr(2)},
		{ScaleResolutionDownBy: ptr(1)},
	})
	want := []float64{4, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
