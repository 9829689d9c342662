package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// Album types.
const (
	AlbumTypePerson  = "person"
	AlbumTypeUnknown = "unknown"
	AlbumTypeAll     = "all"
)

// Album is one identity (or the all-photos listing) as shown to users.
type Album struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	Count         int    `json:"count"`
	Thumbnail     string `json:"thumbnail,omitempty"` // face ID
	ThumbnailFile string `json:"thumbnail_file,omitempty"`
}

// FaceView is a ledger record without its embedding.
type FaceView struct {
	FaceID   string            `json:"face_id"`
	FileName string            `json:"file_name"`
	Location database.Location `json:"location"`
	PersonID string            `json:"person_id"`
	Override string            `json:"override,omitempty"`
	TooSmall bool              `json:"too_small,omitempty"`
}

// AlbumDetail is an album with its faces. Photos is only set for the
// all-photos album.
type AlbumDetail struct {
	Album
	Faces  []FaceView `json:"faces"`
	Photos []string   `json:"photos,omitempty"`
}

// NewFaceView is the display form of a ledger record, without the embedding.
func NewFaceView(r *database.FaceRecord) FaceView {
	return FaceView{
		FaceID:   r.FaceID,
		FileName: r.FileName,
		Location: r.Location,
		PersonID: r.PersonID,
		Override: r.Override,
		TooSmall: r.TooSmall,
	}
}

// RecordsForIdentity returns records whose effective identity is personID,
// in ledger order.
func RecordsForIdentity(records []database.FaceRecord, personID string) []database.FaceRecord {
	var out []database.FaceRecord
	for i := range records {
		if records[i].EffectivePersonID() == personID {
			out = append(out, records[i])
		}
	}
	return out
}

func (e *Engine) title(personID string) string {
	if e.names != nil {
		if name, ok := e.names.DisplayName(personID); ok {
			return name
		}
	}
	if personID == database.NoisePersonID {
		return "Unassigned faces"
	}
	return personID
}

// buildAlbum groups one identity's faces. Count and thumbnail ignore
// too-small faces; the thumbnail is the face closest to the representative.
func (e *Engine) buildAlbum(personID string, faces []database.FaceRecord, rep *database.Representative) Album {
	album := Album{ID: personID, Type: AlbumTypePerson, Title: e.title(personID)}
	if personID == database.NoisePersonID {
		album.Type = AlbumTypeUnknown
	}

	best := -2.0
	for i := range faces {
		f := &faces[i]
		if f.TooSmall {
			continue
		}
		album.Count++
		sim := 0.0
		if rep != nil {
			sim = vector.CosineSimilarity(f.Embedding, rep.Vector)
		}
		if album.Thumbnail == "" || sim > best {
			best = sim
			album.Thumbnail = f.FaceID
			album.ThumbnailFile = f.FileName
		}
	}
	return album
}

func albumLess(a, b string) bool {
	if a == database.NoisePersonID || b == database.NoisePersonID {
		return b == database.NoisePersonID && a != b
	}
	na, oka := database.ParseSeq(database.PersonPrefix, a)
	nb, okb := database.ParseSeq(database.PersonPrefix, b)
	if oka && okb {
		return na < nb
	}
	if oka != okb {
		return !oka
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

// Albums lists the all-photos album (when uploads are available) followed
// by one album per effective identity. Named and bound identities come
// first, then person_{n} in numeric order, then unassigned noise.
func (e *Engine) Albums(ctx context.Context) ([]Album, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing faces: %w", err)
	}
	reps, err := e.store.ListRepresentatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing representatives: %w", err)
	}
	repOf := make(map[string]*database.Representative, len(reps))
	for i := range reps {
		repOf[reps[i].PersonID] = &reps[i]
	}

	groups := make(map[string][]database.FaceRecord)
	for i := range records {
		id := records[i].EffectivePersonID()
		groups[id] = append(groups[id], records[i])
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return albumLess(ids[i], ids[j]) })

	albums := make([]Album, 0, len(ids)+1)
	if e.photos != nil {
		photos, err := e.photos.List()
		if err != nil {
			return nil, fmt.Errorf("listing photos: %w", err)
		}
		albums = append(albums, Album{
			ID:    constants.AllPhotosAlbumID,
			Type:  AlbumTypeAll,
			Title: "All photos",
			Count: len(photos),
		})
	}
	for _, id := range ids {
		albums = append(albums, e.buildAlbum(id, groups[id], repOf[id]))
	}
	return albums, nil
}

// AlbumFaces returns one album with its faces.
func (e *Engine) AlbumFaces(ctx context.Context, albumID string) (*AlbumDetail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing faces: %w", err)
	}

	if albumID == constants.AllPhotosAlbumID && e.photos != nil {
		photos, err := e.photos.List()
		if err != nil {
			return nil, fmt.Errorf("listing photos: %w", err)
		}
		detail := &AlbumDetail{
			Album:  Album{ID: albumID, Type: AlbumTypeAll, Title: "All photos", Count: len(photos)},
			Faces:  make([]FaceView, 0, len(records)),
			Photos: photos,
		}
		for i := range records {
			detail.Faces = append(detail.Faces, NewFaceView(&records[i]))
		}
		return detail, nil
	}

	faces := RecordsForIdentity(records, albumID)
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, albumID)
	}
	rep, err := e.store.GetRepresentative(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("loading representative: %w", err)
	}

	detail := &AlbumDetail{Album: e.buildAlbum(albumID, faces, rep), Faces: make([]FaceView, 0, len(faces))}
	for i := range faces {
		detail.Faces = append(detail.Faces, NewFaceView(&faces[i]))
	}
	return detail, nil
}
