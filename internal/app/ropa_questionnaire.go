package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ropatopia/internal/export"
	"ropatopia/internal/model"
	"ropatopia/internal/repository"
)

const maxConcurrentSaves = 8

var optionSeparator = regexp.MustCompile(`\r?\n|,`)

// RopaQuestionnaire is one client's answer sheet for a ROPA session. Answers
// are edited locally and only the changed ones are sent on Save.
type RopaQuestionnaire struct {
	sessionID string
	ropa      *repository.RopaTemplateRepository
	logger    *slog.Logger

	mu           sync.Mutex
	loaded       bool
	answeredOnly bool
	questions    []model.RopaQuestion
	draft        *Draft
	saving       bool
}

type RopaQuestionView struct {
	model.RopaQuestion
	CurrentAnswer string   `json:"current_answer"`
	Selected      []string `json:"selected,omitempty"`
	Changed       bool     `json:"changed"`
}

type RopaQuestionnaireView struct {
	SessionID    string             `json:"session_id"`
	AnsweredOnly bool               `json:"answered_only"`
	Questions    []RopaQuestionView `json:"questions"`
	ChangedIDs   []string           `json:"changed_ids"`
	Saving       bool               `json:"saving"`
}

type AddRopaQuestionInput struct {
	Question     string             `json:"question"`
	QuestionType model.QuestionType `json:"question_type"`
	Category     string             `json:"category"`
	HelpText     string             `json:"help_text"`
	Required     bool               `json:"required"`
	OptionsText  string             `json:"options_text"`
}

type RopaStatusView struct {
	SessionID            string           `json:"session_id"`
	Status               model.RopaStatus `json:"status"`
	TotalQuestions       int              `json:"total_questions"`
	AnsweredQuestions    int              `json:"answered_questions"`
	CompletionPercentage float64          `json:"completion_percentage"`
}

func NewRopaQuestionnaire(sessionID string, ropa *repository.RopaTemplateRepository, logger *slog.Logger) *RopaQuestionnaire {
	if logger == nil {
		logger = slog.Default()
	}
	return &RopaQuestionnaire{
		sessionID: sessionID,
		ropa:      ropa,
		logger:    logger,
		draft:     NewDraft(),
	}
}

func (q *RopaQuestionnaire) EnsureLoaded(ctx context.Context) error {
	q.mu.Lock()
	loaded, answeredOnly := q.loaded, q.answeredOnly
	q.mu.Unlock()
	if loaded {
		return nil
	}
	return q.Load(ctx, answeredOnly)
}

// Load fetches the questions. Without answeredOnly only unanswered questions
// are kept. Local edits are discarded.
func (q *RopaQuestionnaire) Load(ctx context.Context, answeredOnly bool) error {
	resp, err := q.ropa.Questions(ctx, q.sessionID, answeredOnly)
	if err == nil && !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to fetch questions"
		}
		err = fmt.Errorf("load ropa questions failed: %s", msg)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.answeredOnly = answeredOnly
	if err != nil {
		q.questions = nil
		q.draft.Reset(nil)
		q.loaded = false
		return err
	}

	fetched := resp.Data.Questions
	kept := make([]model.RopaQuestion, 0, len(fetched))
	for _, rq := range fetched {
		if !answeredOnly && rq.IsAnswered {
			continue
		}
		kept = append(kept, rq)
	}
	values := make(map[string]string, len(kept))
	for _, rq := range kept {
		values[rq.ID] = derefString(rq.Answer)
	}
	q.questions = kept
	q.draft.Reset(values)
	q.loaded = true
	return nil
}

func (q *RopaQuestionnaire) View() RopaQuestionnaireView {
	q.mu.Lock()
	defer q.mu.Unlock()
	views := make([]RopaQuestionView, 0, len(q.questions))
	ids := make([]string, 0, len(q.questions))
	for _, rq := range q.questions {
		current := q.draft.Current(rq.ID)
		v := RopaQuestionView{RopaQuestion: rq, CurrentAnswer: current, Changed: q.draft.IsChanged(rq.ID)}
		if rq.Type == model.QuestionTypeMultiSelect {
			v.Selected = splitSelection(current)
		}
		views = append(views, v)
		ids = append(ids, rq.ID)
	}
	return RopaQuestionnaireView{
		SessionID:    q.sessionID,
		AnsweredOnly: q.answeredOnly,
		Questions:    views,
		ChangedIDs:   q.draft.ChangedIn(ids),
		Saving:       q.saving,
	}
}

func (q *RopaQuestionnaire) question(id string) (model.RopaQuestion, bool) {
	for _, rq := range q.questions {
		if rq.ID == id {
			return rq, true
		}
	}
	return model.RopaQuestion{}, false
}

func (q *RopaQuestionnaire) SetAnswer(id, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.question(id); !ok {
		return ErrQuestionNotFound
	}
	q.draft.Set(id, value)
	return nil
}

func (q *RopaQuestionnaire) SetBoolean(id string, value bool) error {
	if value {
		return q.SetAnswer(id, "Yes")
	}
	return q.SetAnswer(id, "No")
}

func (q *RopaQuestionnaire) AddOption(id, option string) error {
	option = strings.TrimSpace(option)
	if option == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.question(id); !ok {
		return ErrQuestionNotFound
	}
	selected := splitSelection(q.draft.Current(id))
	for _, s := range selected {
		if s == option {
			return nil
		}
	}
	q.draft.Set(id, strings.Join(append(selected, option), ","))
	return nil
}

func (q *RopaQuestionnaire) RemoveOption(id, option string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.question(id); !ok {
		return ErrQuestionNotFound
	}
	selected := splitSelection(q.draft.Current(id))
	kept := selected[:0]
	for _, s := range selected {
		if s != option {
			kept = append(kept, s)
		}
	}
	q.draft.Set(id, strings.Join(kept, ","))
	return nil
}

// Save sends one save-answer call per changed question. After all succeed
// the saved values become the originals and the questions are refetched.
func (q *RopaQuestionnaire) Save(ctx context.Context) (int, error) {
	q.mu.Lock()
	if q.saving {
		q.mu.Unlock()
		return 0, nil
	}
	answers := make([]model.RopaAnswer, 0, q.draft.ChangedCount())
	for _, rq := range q.questions {
		if !q.draft.IsChanged(rq.ID) {
			continue
		}
		answers = append(answers, model.RopaAnswer{
			SessionID:  q.sessionID,
			QuestionID: rq.ID,
			OtherText:  rq.OtherText,
			Answer:     q.draft.Current(rq.ID),
			Category:   rq.Category,
		})
	}
	if len(answers) == 0 {
		q.mu.Unlock()
		return 0, nil
	}
	q.saving = true
	answeredOnly := q.answeredOnly
	q.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSaves)
	for _, a := range answers {
		a := a
		g.Go(func() error {
			if err := q.ropa.SaveAnswer(gctx, a); err != nil {
				return fmt.Errorf("save answer %s failed: %w", a.QuestionID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	q.mu.Lock()
	q.saving = false
	if err == nil {
		saved := make(map[string]string, len(answers))
		for _, a := range answers {
			saved[a.QuestionID] = a.Answer
		}
		q.draft.Commit(saved)
	}
	q.mu.Unlock()
	if err != nil {
		q.logger.Error("save ropa answers failed", "session", q.sessionID, "error", err)
		return 0, err
	}

	if err := q.Load(ctx, answeredOnly); err != nil {
		q.logger.Warn("refetch ropa questions after save failed", "session", q.sessionID, "error", err)
	}
	return len(answers), nil
}

type ropaRemoval struct {
	index    int
	question model.RopaQuestion
	draft    draftEntry
}

// Remove drops the question locally, then asks the backend. A failed call puts
// the question back where it was.
func (q *RopaQuestionnaire) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	idx := -1
	for i, rq := range q.questions {
		if rq.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return ErrQuestionNotFound
	}
	undo := ropaRemoval{index: idx, question: q.questions[idx], draft: q.draft.remove(id)}
	q.questions = append(q.questions[:idx:idx], q.questions[idx+1:]...)
	q.mu.Unlock()

	if err := q.ropa.RemoveQuestion(ctx, q.sessionID, id); err != nil {
		q.mu.Lock()
		q.restore(undo)
		q.mu.Unlock()
		return fmt.Errorf("remove question failed: %w", err)
	}
	return nil
}

func (q *RopaQuestionnaire) restore(r ropaRemoval) {
	idx := min(r.index, len(q.questions))
	q.questions = append(q.questions[:idx], append([]model.RopaQuestion{r.question}, q.questions[idx:]...)...)
	q.draft.restore(r.question.ID, r.draft)
}

func (q *RopaQuestionnaire) AddQuestion(ctx context.Context, input AddRopaQuestionInput) error {
	question := strings.TrimSpace(input.Question)
	category := strings.TrimSpace(input.Category)
	if question == "" {
		return invalid("Question text is required.")
	}
	if category == "" {
		return invalid("Category is required.")
	}
	qType := input.QuestionType
	if qType == "" {
		qType = model.QuestionTypeText
	}
	options := []string{}
	if qType == model.QuestionTypeMultiSelect {
		options = ParseOptions(input.OptionsText)
		if len(options) == 0 {
			return invalid("Provide at least one option for multi select questions.")
		}
	}

	err := q.ropa.AddQuestion(ctx, model.RopaAddQuestionPayload{
		SessionID:    q.sessionID,
		Question:     question,
		QuestionType: qType,
		Category:     category,
		HelpText:     strings.TrimSpace(input.HelpText),
		Required:     input.Required,
		Options:      options,
	})
	if err != nil {
		return fmt.Errorf("add question failed: %w", err)
	}

	q.mu.Lock()
	answeredOnly := q.answeredOnly
	q.mu.Unlock()
	return q.Load(ctx, answeredOnly)
}

func (q *RopaQuestionnaire) Status(ctx context.Context) (*RopaStatusView, error) {
	st, err := q.ropa.SessionStatus(ctx, q.sessionID)
	if err != nil {
		return nil, err
	}
	if !st.Success {
		return nil, fmt.Errorf("session status failed: %s", st.Message)
	}
	return &RopaStatusView{
		SessionID:            st.Data.SessionID,
		Status:               st.Data.Status,
		TotalQuestions:       st.Data.Progress.TotalQuestions,
		AnsweredQuestions:    st.Data.Progress.AnsweredQuestions,
		CompletionPercentage: ClampPercentage(st.Data.Progress.CompletionPercentage),
	}, nil
}

// Download writes the loaded questions with their current answers as a
// spreadsheet.
func (q *RopaQuestionnaire) Download(w io.Writer) error {
	q.mu.Lock()
	pairs := make([]export.QAPair, 0, len(q.questions))
	for _, rq := range q.questions {
		pairs = append(pairs, export.QAPair{Question: rq.Question, Answer: q.draft.Current(rq.ID)})
	}
	q.mu.Unlock()
	return export.WriteQA(w, pairs)
}

// ParseOptions splits multi select options on newlines or commas.
func ParseOptions(text string) []string {
	var out []string
	for _, part := range optionSeparator.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ClampPercentage(p float64) float64 {
	return max(0, min(p, 100))
}

func splitSelection(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
