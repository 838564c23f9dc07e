package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
	th "github.com/desertthunder/playlist-converter/internal/testing"
)

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("item-%03d", i)
	}
	return ids
}

func TestPlaylistBuilder_Build(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		items       int
		wantAppends int
	}{
		{"unchunked destination takes everything at once", 0, 250, 0},
		{"within batch limit", 100, 100, 0},
		{"over batch limit appends in order", 100, 250, 2},
		{"one past the limit", 100, 101, 1},
		{"empty playlist", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := th.NewFakeCatalog("spotify")
			dest.Limit = tt.limit
			ids := itemIDs(tt.items)

			b := NewPlaylistBuilder(shared.NewLogger(io.Discard))
			id, err := b.Build(context.Background(), dest, services.Credentials{}, "Road Trip", ids)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			created := dest.Created()
			if len(created) != 1 {
				t.Fatalf("created %d playlists, want 1", len(created))
			}
			if created[0].ID != id {
				t.Errorf("returned id %q, created %q", id, created[0].ID)
			}
			if created[0].Name != "Road Trip" {
				t.Errorf("name = %q, want %q", created[0].Name, "Road Trip")
			}
			if !slices.Equal(created[0].Items, ids) {
				t.Errorf("items out of order or missing: got %d items", len(created[0].Items))
			}
			if dest.Appends() != tt.wantAppends {
				t.Errorf("appends = %d, want %d", dest.Appends(), tt.wantAppends)
			}
		})
	}
}

func TestPlaylistBuilder_DefaultName(t *testing.T) {
	dest := th.NewFakeCatalog("youtube")
	if _, err := NewPlaylistBuilder(nil).Build(context.Background(), dest, services.Credentials{}, "", itemIDs(1)); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := dest.Created()[0].Name; got != defaultPlaylistName {
		t.Errorf("name = %q, want %q", got, defaultPlaylistName)
	}
}

func TestPlaylistBuilder_Errors(t *testing.T) {
	upstream := fmt.Errorf("%w: 400", shared.ErrAPIRequest)

	t.Run("create rejected", func(t *testing.T) {
		dest := th.NewFakeCatalog("youtube")
		dest.CreateErr = upstream

		id, err := NewPlaylistBuilder(shared.NewLogger(io.Discard)).Build(context.Background(), dest, services.Credentials{}, "x", itemIDs(3))
		if !errors.Is(err, shared.ErrPlaylistCreationFailed) {
			t.Errorf("error = %v, want ErrPlaylistCreationFailed", err)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("error = %v, want upstream cause preserved", err)
		}
		if id != "" {
			t.Errorf("id = %q, want empty", id)
		}
	})

	t.Run("append rejected", func(t *testing.T) {
		dest := th.NewFakeCatalog("spotify")
		dest.Limit = 2
		dest.AppendErr = upstream

		id, err := NewPlaylistBuilder(shared.NewLogger(io.Discard)).Build(context.Background(), dest, services.Credentials{}, "x", itemIDs(5))
		if !errors.Is(err, shared.ErrPlaylistCreationFailed) {
			t.Errorf("error = %v, want ErrPlaylistCreationFailed", err)
		}
		if id == "" {
			t.Error("expected the partially filled playlist id")
		}
	})
}

func TestChunk(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 3, []int{}},
		{3, 3, []int{3}},
		{7, 3, []int{3, 3, 1}},
		{250, 100, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d by %d", tt.n, tt.size), func(t *testing.T) {
			ids := itemIDs(tt.n)
			chunks := chunk(ids, tt.size)

			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c)
			}
			if !slices.Equal(sizes, tt.want) {
				t.Errorf("chunk sizes = %v, want %v", sizes, tt.want)
			}
			if joined := slices.Concat(chunks...); len(ids) > 0 && !slices.Equal(joined, ids) {
				t.Error("chunks do not reassemble the input in order")
			}
		})
	}
}
