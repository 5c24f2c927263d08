package promotion

import (
	"sort"
	"time"

	"github.com/tradeup/creditengine/internal/models"
	"github.com/tradeup/creditengine/pkg/types"

	"github.com/samber/lo"
)

// Context is the point-in-time transaction being matched. Matching is a
// pure read: it never increments usage counters, so previews are free.
type Context struct {
	Now         time.Time
	Channel     types.Channel
	MemberID    string
	MemberTier  string
	CategoryIDs []string
	ValueCents  int64
	ItemCount   int
}

// Match filters the active promotion catalog down to the promotions
// applicable to ctx, ordered by priority descending then id ascending.
// memberUses maps promotion id to the member's historical use count and
// feeds the per-member cap check.
func Match(ctx Context, catalog []*models.Promotion, memberUses map[string]int64) []*models.Promotion {
	matched := lo.Filter(catalog, func(p *models.Promotion, _ int) bool {
		return matches(ctx, p, memberUses[p.ID])
	})

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func matches(ctx Context, p *models.Promotion, memberUseCount int64) bool {
	if !p.Active {
		return false
	}
	if ctx.Now.Before(p.StartsAt) || ctx.Now.After(p.EndsAt) {
		return false
	}
	if !inDailyWindow(ctx.Now, p.DailyStartMinute, p.DailyEndMinute) {
		return false
	}
	if len(p.ActiveDays) > 0 && !lo.Contains(p.ActiveDays, isoWeekday(ctx.Now)) {
		return false
	}
	if p.Channel != types.ChannelAll && p.Channel != ctx.Channel {
		return false
	}
	if len(p.CategoryIDs) > 0 && len(lo.Intersect([]string(p.CategoryIDs), ctx.CategoryIDs)) == 0 {
		return false
	}
	if len(p.TierRestriction) > 0 && !lo.Contains(p.TierRestriction, ctx.MemberTier) {
		return false
	}
	if ctx.ItemCount < p.MinItems || ctx.ValueCents < p.MinValueCents {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	if p.MaxUsesPerMember != nil && memberUseCount >= *p.MaxUsesPerMember {
		return false
	}
	return true
}

// inDailyWindow checks the time-of-day restriction. The window is a
// circular interval in minutes from local midnight and may wrap past
// midnight (e.g. 22:00-02:00).
func inDailyWindow(now time.Time, startMin, endMin *int) bool {
	if startMin == nil || endMin == nil {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	start, end := *startMin, *endMin
	if start <= end {
		return minute >= start && minute <= end
	}
	return minute >= start || minute <= end
}

// isoWeekday numbers days Monday=0 through Sunday=6 for a fixed,
// documented active_days encoding.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
