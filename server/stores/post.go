package stores

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mscno/kalender/pkg/model"
)

// Clock returns the current time. Stores keep microsecond precision so that
// every back end round-trips the same timestamps.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func prepareCreate(p model.Post, now time.Time) model.Post {
	p = p.Clone()
	p.ID = uuid.NewString()
	p.Datetime = p.Datetime.UTC()
	p.Channels = model.NormalizeChannels(p.Channels)
	p.Done = false
	p.CreatedAt = now
	p.UpdatedAt = now
	return p
}

func applyUpdate(current model.Post, updateFn func(model.Post) (model.Post, error), now time.Time) (model.Post, error) {
	updated, err := updateFn(current.Clone())
	if err != nil {
		return model.Post{}, err
	}
	updated.ID = current.ID
	updated.Team = current.Team
	updated.CreatedAt = current.CreatedAt
	updated.Datetime = updated.Datetime.UTC()
	updated.UpdatedAt = now
	return updated, nil
}

func inRange(p model.Post, from, to time.Time) bool {
	return !p.Datetime.Before(from) && !p.Datetime.After(to)
}

func sortPosts(posts []model.Post) {
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return cmp.Or(a.Datetime.Compare(b.Datetime), cmp.Compare(a.ID, b.ID))
	})
}

func changeEvent(typ model.ChangeType, team string, before, after *model.Post, at time.Time) model.ChangeEvent {
	return model.ChangeEvent{Type: typ, Team: team, Old: before, New: after, At: at}
}

func ptr(p model.Post) *model.Post {
	return &p
}
