package app

import "livequiz-service/internal/domain"

// publicQuestionView strips correctness and host notes from a question.
func (g *Game) publicQuestionViewLocked(idx int) domain.QuestionView {
	q := g.quiz.Questions[idx]
	view := domain.QuestionView{
		ID:             q.ID,
		Text:           q.Text,
		Image:          q.Image,
		Hint:           q.Hint,
		Type:           q.Type,
		TimeLimitSec:   q.TimeLimitSec,
		Points:         questionPoints(q),
		QuestionNumber: g.questionNumberLocked(idx),
		TotalQuestions: g.quiz.ScoredQuestionCount(),
		EasterEgg:      q.EasterEgg,
	}
	for _, a := range q.Answers {
		view.Answers = append(view.Answers, domain.AnswerView{ID: a.ID, Text: a.Text, Image: a.Image})
	}
	return view
}

func (g *Game) hostQuestionViewLocked(idx int) domain.HostQuestionView {
	q := g.quiz.Questions[idx]
	return domain.HostQuestionView{
		QuestionView:     g.publicQuestionViewLocked(idx),
		Notes:            q.Notes,
		CorrectAnswerIDs: q.CorrectAnswerIDs(),
	}
}

// snapshotLocked reconstructs client state: the session record, current
// ranking, the running question if any, and the remaining question list for
// preloading (never the full list once the game is underway).
func (g *Game) snapshotLocked() domain.SnapshotPayload {
	snap := domain.SnapshotPayload{
		Session: g.session,
		Players: g.rankingLocked(),
	}
	if g.session.Status == domain.StatusQuestion || g.session.Status == domain.StatusSection {
		view := g.publicQuestionViewLocked(g.session.CurrentIndex)
		snap.Question = &view
	}
	if g.session.InProgress() {
		for i := g.session.CurrentIndex + 1; i >= 0 && i < len(g.quiz.Questions); i++ {
			snap.Remaining = append(snap.Remaining, g.publicQuestionViewLocked(i))
		}
	}
	return snap
}

// questionPoints applies the base-point default.
func questionPoints(q domain.Question) int {
	if q.Points <= 0 {
		return 100
	}
	return q.Points
}
