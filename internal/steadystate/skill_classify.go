package steadystate

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/skillmatch"
	"github.com/hkdb/threadline/internal/store"
	"github.com/rs/zerolog"
)

// skillClassifyBatchSize is the "one batch of up to 10 messages per tick"
// spec.md §4.9 gives skill_classify, per skill.
const skillClassifyBatchSize = 10

// skillClassifyWindow is how many raw candidate rows skill_classify pulls
// per folder before modifier filtering narrows them down to the batch —
// wide enough that a folder full of newsletters doesn't starve a skill
// that excludes them.
const skillClassifyWindow = 50

const recentSixMonthsWindow = 6 * 30 * 24 * time.Hour

// RunSkillClassify runs one bounded batch per enabled skill (spec.md §4.9).
// classifier may be nil, in which case no skill ever matches but cursors
// still advance — useful when no LLM endpoint is configured yet.
func RunSkillClassify(db *store.DB, accountID string, classifier skillmatch.Classifier) error {
	log := logging.WithComponent("steadystate.skill_classify")
	if classifier == nil {
		classifier = skillmatch.NoopClassifier{}
	}

	skills, err := db.ListEnabledSkills(accountID)
	if err != nil {
		return err
	}
	if len(skills) == 0 {
		return nil
	}

	folderRows, err := db.ListFolderSync(accountID)
	if err != nil {
		return err
	}
	folders := make([]string, 0, len(folderRows))
	for _, f := range folderRows {
		folders = append(folders, f.Folder)
	}
	sort.Strings(folders)

	for _, skill := range skills {
		if strings.TrimSpace(skill.Prompt) == "" {
			continue
		}
		if err := runSkillBatch(db, accountID, skill, folders, classifier, log); err != nil {
			return err
		}
	}
	return nil
}

// runSkillBatch processes one skill's batch of up to skillClassifyBatchSize
// messages, prioritizing new mail (forward, above highest_classified_uid)
// over backfill (backward, below lowest_classified_uid) per folder, and
// resetting the skill's cursors and matches wholesale when its revision
// hash no longer matches what any cursor was last classified against.
func runSkillBatch(db *store.DB, accountID string, skill *store.Skill, folders []string, classifier skillmatch.Classifier, log zerolog.Logger) error {
	revision := store.ComputeSkillRevision(skill.Prompt, skill.Modifiers, skill.Model)
	now := time.Now().UnixMilli()

	cursors := make(map[string]*store.SkillCursor, len(folders))
	staleRevision := false
	for _, folder := range folders {
		cursor, err := db.GetSkillCursor(skill.ID, folder)
		if err != nil {
			return err
		}
		if cursor != nil && cursor.SkillRev != revision {
			staleRevision = true
		}
		cursors[folder] = cursor
	}

	if staleRevision {
		log.Debug().Str("skill_id", skill.ID).Msg("skill revision changed, resetting cursors and matches")
		if err := db.ClearSkillMatches(skill.ID); err != nil {
			return err
		}
		for _, folder := range folders {
			if err := db.ResetSkillCursor(skill.ID, folder, revision); err != nil {
				return err
			}
			cursors[folder] = &store.SkillCursor{SkillID: skill.ID, Folder: folder, SkillRev: revision}
		}
	}
	for _, folder := range folders {
		if cursors[folder] == nil {
			if err := db.ResetSkillCursor(skill.ID, folder, revision); err != nil {
				return err
			}
			cursors[folder] = &store.SkillCursor{SkillID: skill.ID, Folder: folder, SkillRev: revision}
		}
	}

	var mods store.SkillModifiers
	_ = json.Unmarshal([]byte(skill.Modifiers), &mods)

	budget := skillClassifyBatchSize
	matched := 0

	for _, folder := range folders {
		if budget <= 0 {
			break
		}
		cursor := cursors[folder]

		raw, err := db.MessagesAboveUID(accountID, folder, cursor.HighestClassifiedUID, skillClassifyWindow)
		if err != nil {
			return err
		}
		if len(raw) > 0 {
			consumed, maxUID, m, err := classifyCandidates(db, skill, raw, &mods, classifier, budget)
			if err != nil {
				return err
			}
			if maxUID > cursor.HighestClassifiedUID {
				if err := db.AdvanceSkillCursor(skill.ID, folder, maxUID, 0); err != nil {
					return err
				}
			}
			budget -= consumed
			matched += m
			continue
		}

		if budget <= 0 {
			continue
		}
		raw, err = db.MessagesBelowUID(accountID, folder, cursor.LowestClassifiedUID, skillClassifyWindow)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			continue
		}
		consumed, minUID, m, err := classifyCandidatesBackward(db, skill, raw, &mods, classifier, budget)
		if err != nil {
			return err
		}
		if cursor.LowestClassifiedUID == 0 || minUID < cursor.LowestClassifiedUID {
			if err := db.AdvanceSkillCursor(skill.ID, folder, 0, minUID); err != nil {
				return err
			}
		}
		budget -= consumed
		matched += m
	}

	if matched > 0 {
		log.Debug().Str("skill_id", skill.ID).Int("matched", matched).Int64("at", now).Msg("skill_classify recorded matches")
	}
	return nil
}

// classifyCandidates walks raw (ascending by UID) and classifies up to
// budget modifier-eligible messages, stopping there; it returns the UID of
// the last raw row it examined (eligible or not) so the caller can advance
// highest_classified_uid past everything actually looked at this tick.
func classifyCandidates(db *store.DB, skill *store.Skill, raw []*store.Message, mods *store.SkillModifiers, classifier skillmatch.Classifier, budget int) (consumed int, lastUID uint32, matched int, err error) {
	for _, m := range raw {
		if consumed >= budget {
			break
		}
		lastUID = m.UID
		eligible, err := modifiersAllow(db, m, mods)
		if err != nil {
			return consumed, lastUID, matched, err
		}
		if !eligible {
			continue
		}
		ok, err := classify(skill, m, classifier)
		if err != nil {
			return consumed, lastUID, matched, err
		}
		consumed++
		if ok {
			matched++
			if err := db.RecordSkillMatch(skill.ID, m.ID, time.Now().UnixMilli()); err != nil {
				return consumed, lastUID, matched, err
			}
		}
	}
	return consumed, lastUID, matched, nil
}

// classifyCandidatesBackward mirrors classifyCandidates for the backward
// (descending-UID) backfill direction.
func classifyCandidatesBackward(db *store.DB, skill *store.Skill, raw []*store.Message, mods *store.SkillModifiers, classifier skillmatch.Classifier, budget int) (consumed int, lastUID uint32, matched int, err error) {
	for _, m := range raw {
		if consumed >= budget {
			break
		}
		lastUID = m.UID
		eligible, err := modifiersAllow(db, m, mods)
		if err != nil {
			return consumed, lastUID, matched, err
		}
		if !eligible {
			continue
		}
		ok, err := classify(skill, m, classifier)
		if err != nil {
			return consumed, lastUID, matched, err
		}
		consumed++
		if ok {
			matched++
			if err := db.RecordSkillMatch(skill.ID, m.ID, time.Now().UnixMilli()); err != nil {
				return consumed, lastUID, matched, err
			}
		}
	}
	return consumed, lastUID, matched, nil
}

func classify(skill *store.Skill, m *store.Message, classifier skillmatch.Classifier) (bool, error) {
	text := messageText(m)
	return classifier.Classify(context.Background(), skill.Prompt, skill.Model, text)
}

func messageText(m *store.Message) string {
	var b strings.Builder
	if m.Subject != nil {
		b.WriteString(*m.Subject)
		b.WriteString("\n\n")
	}
	if m.DistilledText != nil && *m.DistilledText != "" {
		b.WriteString(*m.DistilledText)
	} else if m.BodyText != nil {
		b.WriteString(*m.BodyText)
	}
	return b.String()
}

// modifiersAllow applies the skill's modifier filter set to one candidate.
func modifiersAllow(db *store.DB, m *store.Message, mods *store.SkillModifiers) (bool, error) {
	if mods.ExcludeNewsletters && m.Classification != nil && *m.Classification == "newsletter" {
		return false, nil
	}
	if mods.ExcludeAutoReplies && m.Classification != nil && *m.Classification == "automated" {
		return false, nil
	}
	if mods.HasAttachments && !m.HasAttachments {
		return false, nil
	}
	if mods.RecentSixMonths && time.Since(time.UnixMilli(m.Date)) > recentSixMonthsWindow {
		return false, nil
	}
	if mods.OnlyKnownSenders {
		trust, err := db.TrustLevelOf(m.AccountID, m.FromAddress)
		if err != nil {
			return false, err
		}
		if trust == "" {
			return false, nil
		}
	}
	return true, nil
}
