package cluster

import (
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/vector"
)

func TestHDBSCAN_SingletonIsNoise(t *testing.T) {
	points := [][]float32{
		near(0, 2, 0.01), near(0, 2, 0.02), near(0, 3, 0.015),
		near(1, 2, 0.01), near(1, 3, 0.02), near(1, 2, 0.03),
		{-1, -1, 0, 0},
	}
	labels := HDBSCAN(vector.CosineDistanceMatrix(points), 2, 2)

	want := []int{0, 0, 0, 1, 1, 1, Noise}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("point %d: expected label %d, got %d (all %v)", i, want[i], labels[i], labels)
		}
	}
}

func TestHDBSCAN_LabelsFollowFirstMember(t *testing.T) {
	points := [][]float32{
		near(1, 2, 0.01), near(0, 2, 0.01), near(1, 3, 0.02), near(0, 3, 0.02),
	}
	labels := HDBSCAN(vector.CosineDistanceMatrix(points), 2, 2)
	want := []int{0, 1, 0, 1}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("point %d: expected label %d, got %d", i, want[i], labels[i])
		}
	}
}

func TestHDBSCAN_TooFewPoints(t *testing.T) {
	if labels := HDBSCAN(nil, 2, 2); len(labels) != 0 {
		t.Errorf("expected no labels, got %v", labels)
	}
	labels := HDBSCAN(vector.CosineDistanceMatrix([][]float32{basis(0)}), 2, 2)
	if len(labels) != 1 || labels[0] != Noise {
		t.Errorf("expected single noise label, got %v", labels)
	}
}

func TestHDBSCAN_ThreeGroups(t *testing.T) {
	var points [][]float32
	for g := 0; g < 3; g++ {
		for k := 0; k < 4; k++ {
			points = append(points, near(g, 3, 0.01*float32(k+1)))
		}
	}
	labels := HDBSCAN(vector.CosineDistanceMatrix(points), 2, 2)

	for g := 0; g < 3; g++ {
		first := labels[g*4]
		if first == Noise {
			t.Fatalf("group %d labeled noise: %v", g, labels)
		}
		for k := 1; k < 4; k++ {
			if labels[g*4+k] != first {
				t.Errorf("group %d split: %v", g, labels)
			}
		}
	}
	if labels[0] == labels[4] || labels[4] == labels[8] || labels[0] == labels[8] {
		t.Errorf("groups merged: %v", labels)
	}
}
