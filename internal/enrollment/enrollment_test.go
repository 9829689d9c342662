package enrollment

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
)

type fakeDetector map[string][][]float32

func (d fakeDetector) Detect(_ context.Context, data []byte, _ string) ([]faceengine.Face, error) {
	if string(data) == "corrupt" {
		return nil, errors.New("API error (status 422): cannot decode image")
	}
	embs := d[string(data)]
	faces := make([]faceengine.Face, len(embs))
	for i, e := range embs {
		faces[i] = faceengine.Face{
			Index:     i,
			Location:  database.Location{Top: 100 * i, Right: 100, Bottom: 100*i + 100},
			Embedding: e,
		}
	}
	return faces, nil
}

func img(key string) cluster.Image {
	return cluster.Image{Name: key + ".jpg", Data: []byte(key)}
}

func vec(x ...float32) []float32 { return x }

func testEnrollmentConfig(dir string) config.EnrollmentConfig {
	return config.EnrollmentConfig{
		Dir:               dir,
		SeedVectors:       20,
		ClusterMinVectors: 5,
		ClusterCount:      4,
		KMeansSeed:        42,
	}
}

func newTestService(t *testing.T, det fakeDetector) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(testEnrollmentConfig(dir), det, 0.43)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, dir
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Alice", "alice"},
		{"  José   Núñez ", "jose nunez"},
		{"ÅSA", "asa"},
		{"", ""},
		{"김민수", "김민수"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKMeans_SeparatesGroups(t *testing.T) {
	vectors := [][]float32{
		vec(1, 0, 0), vec(0.98, 0.02, 0), vec(0.97, 0, 0.03),
		vec(0, 1, 0), vec(0.02, 0.99, 0), vec(0, 0.97, 0.02),
	}
	c := KMeans(vectors, 2, 42)
	if c == nil || len(c.Centroids) != 2 || len(c.Labels) != len(vectors) {
		t.Fatalf("unexpected clusters: %+v", c)
	}
	if c.Labels[0] != c.Labels[1] || c.Labels[1] != c.Labels[2] {
		t.Errorf("first group split: %v", c.Labels)
	}
	if c.Labels[3] != c.Labels[4] || c.Labels[4] != c.Labels[5] {
		t.Errorf("second group split: %v", c.Labels)
	}
	if c.Labels[0] == c.Labels[3] {
		t.Errorf("groups merged: %v", c.Labels)
	}

	again := KMeans(vectors, 2, 42)
	for i := range c.Labels {
		if c.Labels[i] != again.Labels[i] {
			t.Fatalf("same seed produced different labels: %v vs %v", c.Labels, again.Labels)
		}
	}
}

func TestKMeans_CapsK(t *testing.T) {
	c := KMeans([][]float32{vec(1, 0), vec(1, 0)}, 4, 42)
	if len(c.Centroids) != 2 {
		t.Errorf("expected k capped at 2, got %d", len(c.Centroids))
	}
	if KMeans(nil, 4, 42) != nil {
		t.Error("expected nil clusters for empty input")
	}
}

func TestRegister_SkipsUnusableImages(t *testing.T) {
	det := fakeDetector{
		"single": {vec(1, 0, 0)},
		"group":  {vec(1, 0, 0), vec(0, 1, 0)},
		"empty":  {},
	}
	s, dir := newTestService(t, det)

	res, err := s.Register(context.Background(), "7", []cluster.Image{img("single"), img("group"), img("empty"), img("corrupt")})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.Added != 1 || res.Total != 1 || res.Submitted != 4 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("expected 3 skipped images, got %+v", res.Skipped)
	}
	if res.Skipped[0].FileName != "group.jpg" || res.Skipped[0].DetectedFaces != 2 {
		t.Errorf("unexpected group skip: %+v", res.Skipped[0])
	}
	if res.Skipped[1].DetectedFaces != 0 {
		t.Errorf("unexpected empty skip: %+v", res.Skipped[1])
	}
	if res.Clustered {
		t.Error("one vector must not be clustered")
	}
	if _, err := os.Stat(filepath.Join(dir, "face_7.gob")); err != nil {
		t.Errorf("expected user file: %v", err)
	}

	reopened, err := Open(testEnrollmentConfig(dir), det, 0.43)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	users := reopened.Users()
	if len(users) != 1 || users[0].UserID != "7" || users[0].Vectors != 1 {
		t.Errorf("unexpected users after reopen: %+v", users)
	}
}

func TestRegister_NoUsableFaces(t *testing.T) {
	s, _ := newTestService(t, fakeDetector{"empty": {}})

	res, err := s.Register(context.Background(), "1", []cluster.Image{img("empty")})
	if !errors.Is(err, ErrNoUsableFaces) {
		t.Fatalf("expected ErrNoUsableFaces, got %v", err)
	}
	if res == nil || len(res.Skipped) != 1 {
		t.Errorf("expected skipped report, got %+v", res)
	}
	if len(s.Users()) != 0 {
		t.Error("user must not be created without vectors")
	}
}

func TestRegister_InvalidUserID(t *testing.T) {
	s, _ := newTestService(t, fakeDetector{})
	for _, id := range []string{"", "../x", "a/b"} {
		if _, err := s.Register(context.Background(), id, nil); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("Register(%q): expected ErrInvalidUserID, got %v", id, err)
		}
	}
}

func TestRegister_ClustersAndSimilarities(t *testing.T) {
	det := fakeDetector{
		"a1": {vec(1, 0, 0)}, "a2": {vec(0.99, 0.01, 0)}, "a3": {vec(0.98, 0, 0.02)},
		"a4": {vec(0.97, 0.03, 0)}, "a5": {vec(0.96, 0, 0.04)},
		"b1": {vec(0, 1, 0)},
	}
	s, _ := newTestService(t, det)
	ctx := context.Background()

	if _, err := s.Register(ctx, "1", []cluster.Image{img("b1")}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	res, err := s.Register(ctx, "2", []cluster.Image{img("a1"), img("a2"), img("a3"), img("a4"), img("a5")})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !res.Clustered || res.Total != 5 {
		t.Errorf("expected clustering at 5 vectors: %+v", res)
	}
	if len(res.Similarities) != 2 {
		t.Fatalf("expected similarities for 2 users, got %+v", res.Similarities)
	}
	if res.Similarities[0].UserID != "1" || math.Abs(res.Similarities[0].Similarity) > 1e-6 {
		t.Errorf("unexpected similarity to user 1: %+v", res.Similarities[0])
	}
	if res.Similarities[1].UserID != "2" || res.Similarities[1].Similarity < 0.999 {
		t.Errorf("unexpected similarity to user 2: %+v", res.Similarities[1])
	}

	s.mu.RLock()
	c := s.users["2"].Clusters
	s.mu.RUnlock()
	if c == nil || len(c.Labels) != 5 || len(c.Centroids) != 4 {
		t.Errorf("unexpected clusters: %+v", c)
	}
}

func TestSetNameAndDisplayName(t *testing.T) {
	s, dir := newTestService(t, fakeDetector{"f": {vec(1, 0)}})
	ctx := context.Background()

	if err := s.SetName("9", "Nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.Register(ctx, "9", []cluster.Image{img("f")}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := s.SetName("9", "José Núñez"); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}

	if name, ok := s.DisplayName("user_9"); !ok || name != "José Núñez" {
		t.Errorf("DisplayName(user_9) = %q, %v", name, ok)
	}
	if _, ok := s.DisplayName("person_9"); ok {
		t.Error("auto-assigned person_9 must not take the name of user 9")
	}
	if name, ok := s.DisplayName("jose nunez"); !ok || name != "José Núñez" {
		t.Errorf("DisplayName by folded name = %q, %v", name, ok)
	}
	if _, ok := s.DisplayName("user_3"); ok {
		t.Error("unnamed identity must not resolve")
	}

	reopened, err := Open(testEnrollmentConfig(dir), fakeDetector{}, 0.43)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.Name("9"); got != "José Núñez" {
		t.Errorf("name not persisted, got %q", got)
	}
}

func TestSeedRepresentatives(t *testing.T) {
	det := fakeDetector{
		"a": {vec(1, 0)}, "b": {vec(0, 1)}, "c": {vec(1, 1)},
	}
	dir := t.TempDir()
	cfg := testEnrollmentConfig(dir)
	cfg.SeedVectors = 2
	s, err := Open(cfg, det, 0.43)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.Register(context.Background(), "4", []cluster.Image{img("a"), img("b"), img("c")}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reps, err := s.SeedRepresentatives(context.Background(), 20)
	if err != nil {
		t.Fatalf("SeedRepresentatives failed: %v", err)
	}
	if len(reps) != 1 || reps[0].PersonID != "user_4" {
		t.Fatalf("unexpected reps: %+v", reps)
	}
	// Mean of the last two vectors (0,1) and (1,1).
	if reps[0].Vector[0] != 0.5 || reps[0].Vector[1] != 1 {
		t.Errorf("unexpected seed vector %v", reps[0].Vector)
	}
	if len(reps[0].History) != 2 {
		t.Errorf("expected history of 2, got %d", len(reps[0].History))
	}
}

func TestCheckAttendance(t *testing.T) {
	det := fakeDetector{
		"u1":    {vec(1, 0, 0)},
		"u2":    {vec(0, 1, 0)},
		"u3":    {vec(0.9, 0.1, 0)},
		"group": {vec(0.95, 0.05, 0), vec(0.05, 0.95, 0), vec(0, 0, 1)},
		"solo":  {vec(1, 0, 0)},
		"none":  {},
	}
	s, _ := newTestService(t, det)
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if _, err := s.Register(ctx, id, []cluster.Image{img("u" + id)}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	_ = s.SetName("1", "Alice")

	res, err := s.CheckAttendance(ctx, img("group"))
	if err != nil {
		t.Fatalf("CheckAttendance failed: %v", err)
	}
	if res.FacesDetected != 3 || res.Count != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	present := map[string]Attendee{}
	for _, a := range res.Attendees {
		present[a.UserID] = a
	}
	if present["1"].Name != "Alice" {
		t.Errorf("expected name for user 1: %+v", present["1"])
	}
	if _, ok := present["2"]; !ok {
		t.Errorf("user 2 missing: %+v", res.Attendees)
	}

	if _, err := s.Register(ctx, "3", []cluster.Image{img("u3")}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	res, err = s.CheckAttendance(ctx, img("solo"))
	if err != nil {
		t.Fatalf("CheckAttendance failed: %v", err)
	}
	if res.Count != 1 || res.Attendees[0].UserID != "1" {
		t.Errorf("one face must mark one user: %+v", res.Attendees)
	}

	res, err = s.CheckAttendance(ctx, img("none"))
	if err != nil {
		t.Fatalf("CheckAttendance failed: %v", err)
	}
	if res.Count != 0 || res.FacesDetected != 0 || len(res.Attendees) != 0 {
		t.Errorf("expected zero result, got %+v", res)
	}

	if _, err := s.CheckAttendance(ctx, img("corrupt")); err == nil {
		t.Error("expected detection error")
	}
}

func TestCandidateVectors_UsesClosestCluster(t *testing.T) {
	ud := &UserData{
		Raw: [][]float32{vec(1, 0), vec(0, 1), vec(0.9, 0.1)},
		Clusters: &Clusters{
			Centroids: [][]float32{vec(0.95, 0.05), vec(0, 1)},
			Labels:    []int{0, 1, 0},
		},
	}
	got := candidateVectors(ud, vec(0, 1))
	if len(got) != 1 || got[0][1] != 1 {
		t.Errorf("expected only the second cluster, got %v", got)
	}

	ud.Clusters = nil
	if got := candidateVectors(ud, vec(0, 1)); len(got) != 3 {
		t.Errorf("unclustered user must compare all vectors, got %d", len(got))
	}
}
