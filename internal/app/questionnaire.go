package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ropatopia/internal/backend"
	"ropatopia/internal/export"
	"ropatopia/internal/model"
	"ropatopia/internal/repository"
)

const localIDPrefix = "local-"

// ChatCache caches a session's detail and chat records per client.
type ChatCache interface {
	GetHistory(ctx context.Context, clientID, sessionID string) (*model.SessionDetail, bool, error)
	SetHistory(ctx context.Context, clientID, sessionID string, detail *model.SessionDetail) error
	DeleteHistory(ctx context.Context, clientID, sessionID string) error
	MarkDirty(ctx context.Context, clientID, sessionID string) error
	IsDirty(ctx context.Context, clientID, sessionID string) (bool, error)
}

type AnswerKind string

const (
	AnswerOK         AnswerKind = "answer"
	AnswerFailed     AnswerKind = "error"
	AnswerSuperseded AnswerKind = "superseded"
)

// AnswerResult is the outcome of one generate request. Only AnswerOK carries
// an answer; AnswerFailed carries the reason instead.
type AnswerResult struct {
	Kind       AnswerKind `json:"kind"`
	QuestionID string     `json:"question_id"`
	Answer     string     `json:"answer,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

type chatQuestion struct {
	id        string
	answer    string
	answerErr string
	updatedAt time.Time
	local     bool
}

type QuestionView struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	AnswerError  string    `json:"answer_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	Local        bool      `json:"local"`
	Changed      bool      `json:"changed"`
	Loading      bool      `json:"loading"`
	DropdownOpen bool      `json:"dropdown_open"`
	FeedbackOpen bool      `json:"feedback_open"`
}

type QuestionnaireView struct {
	SessionID            string         `json:"session_id"`
	CompanyName          string         `json:"company_name"`
	ProcessingActivities []string       `json:"processing_activities"`
	Editing              bool           `json:"editing"`
	Questions            []QuestionView `json:"questions"`
	ChangedIDs           []string       `json:"changed_ids"`
}

// Questionnaire is one client's view of a session's latest answers. Question
// text edits are tracked in a Draft; runs and saves go to the backend.
type Questionnaire struct {
	clientID  string
	sessionID string
	sessions  *repository.SessionRepository
	pia       *repository.GeneratePIARepository
	ropa      *repository.RopaTemplateRepository
	cache     ChatCache
	logger    *slog.Logger

	mu         sync.Mutex
	loaded     bool
	company    string
	activities []string
	order      []string
	questions  map[string]*chatQuestion
	history    map[string][]model.Chat
	draft      *Draft
	editing    bool
	dropdown   map[string]bool
	feedback   map[string]bool
	inflight   map[string]uint64
	seq        map[string]uint64
	nextLocal  int
}

func NewQuestionnaire(clientID, sessionID string, repos *Repositories, cache ChatCache, logger *slog.Logger) *Questionnaire {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Questionnaire{
		clientID:  clientID,
		sessionID: sessionID,
		sessions:  repos.Sessions,
		pia:       repos.PIA,
		ropa:      repos.Ropa,
		cache:     cache,
		logger:    logger,
		draft:     NewDraft(),
		seq:       make(map[string]uint64),
	}
	q.resetLocked(nil)
	return q
}

func (q *Questionnaire) EnsureLoaded(ctx context.Context) error {
	q.mu.Lock()
	loaded := q.loaded
	q.mu.Unlock()
	if loaded {
		return nil
	}
	return q.Load(ctx, false)
}

// Load fetches the session's chats and shows the latest one per question.
// With force the cache is bypassed. Local edits are discarded.
func (q *Questionnaire) Load(ctx context.Context, force bool) error {
	detail, err := q.fetch(ctx, force)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.resetLocked(nil)
		q.loaded = false
		return err
	}
	q.company = detail.CompanyName
	q.activities = detail.ProcessingActivities
	q.resetLocked(detail.Chats)
	q.loaded = true
	return nil
}

func (q *Questionnaire) fetch(ctx context.Context, force bool) (*model.SessionDetail, error) {
	if q.cache != nil && !force {
		dirty, err := q.cache.IsDirty(ctx, q.clientID, q.sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := q.cache.GetHistory(ctx, q.clientID, q.sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	detail, err := q.sessions.Get(ctx, q.sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s failed: %w", q.sessionID, err)
	}
	if q.cache != nil {
		if dirty, dirtyErr := q.cache.IsDirty(ctx, q.clientID, q.sessionID); dirtyErr == nil && !dirty {
			_ = q.cache.SetHistory(ctx, q.clientID, q.sessionID, detail)
		}
	}
	return detail, nil
}

// resetLocked rebuilds all state from chats. Requests still in flight are
// superseded so their responses are dropped.
func (q *Questionnaire) resetLocked(chats []model.Chat) {
	for id := range q.inflight {
		q.seq[id]++
	}
	order, latest, history := GroupChats(chats)
	q.order = order
	q.questions = make(map[string]*chatQuestion, len(order))
	texts := make(map[string]string, len(order))
	for _, id := range order {
		c := latest[id]
		q.questions[id] = &chatQuestion{id: id, answer: c.Answer, updatedAt: c.UpdatedAt}
		texts[id] = c.Question
	}
	q.history = history
	q.draft.Reset(texts)
	q.editing = false
	q.dropdown = make(map[string]bool)
	q.feedback = make(map[string]bool)
	q.inflight = make(map[string]uint64)
}

// GroupChats groups chats by question id in order of first appearance. The
// latest chat of a group is the one with the greatest UpdatedAt; history is
// sorted oldest first.
func GroupChats(chats []model.Chat) (order []string, latest map[string]model.Chat, history map[string][]model.Chat) {
	latest = make(map[string]model.Chat)
	history = make(map[string][]model.Chat)
	for _, c := range chats {
		if _, seen := history[c.QuestionID]; !seen {
			order = append(order, c.QuestionID)
		}
		history[c.QuestionID] = append(history[c.QuestionID], c)
		if cur, ok := latest[c.QuestionID]; !ok || c.UpdatedAt.After(cur.UpdatedAt) {
			latest[c.QuestionID] = c
		}
	}
	for id := range history {
		h := history[id]
		sort.SliceStable(h, func(i, j int) bool { return h[i].UpdatedAt.Before(h[j].UpdatedAt) })
	}
	return order, latest, history
}

func (q *Questionnaire) View() QuestionnaireView {
	q.mu.Lock()
	defer q.mu.Unlock()
	views := make([]QuestionView, 0, len(q.order))
	for _, id := range q.order {
		cq := q.questions[id]
		_, loading := q.inflight[id]
		views = append(views, QuestionView{
			ID:           id,
			Question:     q.draft.Current(id),
			Answer:       cq.answer,
			AnswerError:  cq.answerErr,
			UpdatedAt:    cq.updatedAt,
			Local:        cq.local,
			Changed:      q.draft.IsChanged(id),
			Loading:      loading,
			DropdownOpen: q.dropdown[id],
			FeedbackOpen: q.feedback[id],
		})
	}
	return QuestionnaireView{
		SessionID:            q.sessionID,
		CompanyName:          q.company,
		ProcessingActivities: q.activities,
		Editing:              q.editing,
		Questions:            views,
		ChangedIDs:           q.draft.ChangedIn(q.order),
	}
}

// SetEditing enters or leaves edit mode. Entering closes every dropdown and
// feedback popup; leaving refetches and drops unsaved edits.
func (q *Questionnaire) SetEditing(ctx context.Context, editing bool) error {
	q.mu.Lock()
	if editing {
		q.editing = true
		q.dropdown = make(map[string]bool)
		q.feedback = make(map[string]bool)
		q.mu.Unlock()
		return nil
	}
	wasEditing := q.editing
	q.mu.Unlock()
	if !wasEditing {
		return nil
	}
	return q.Load(ctx, true)
}

func (q *Questionnaire) SetQuestion(id, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.editing {
		return ErrNotEditing
	}
	if _, ok := q.questions[id]; !ok {
		return ErrQuestionNotFound
	}
	q.draft.Set(id, text)
	return nil
}

// AddQuestion shows a new question right away. It has no history until it is
// run or saved.
func (q *Questionnaire) AddQuestion(text string) (QuestionView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return QuestionView{}, invalid("Question text is required.")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextLocal++
	id := localIDPrefix + strconv.Itoa(q.nextLocal)
	q.order = append(q.order, id)
	q.questions[id] = &chatQuestion{id: id, local: true}
	q.draft.Commit(map[string]string{id: ""})
	q.draft.Set(id, text)
	return QuestionView{ID: id, Question: text, Local: true, Changed: true}, nil
}

func (q *Questionnaire) ToggleDropdown(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.questions[id]; !ok {
		return false, ErrQuestionNotFound
	}
	q.dropdown[id] = !q.dropdown[id]
	return q.dropdown[id], nil
}

func (q *Questionnaire) ToggleFeedback(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.questions[id]; !ok {
		return false, ErrQuestionNotFound
	}
	q.feedback[id] = !q.feedback[id]
	return q.feedback[id], nil
}

// Run asks the backend for a fresh answer to one question. When another run
// of the same question starts before this one returns, this response is
// discarded and reported as superseded.
func (q *Questionnaire) Run(ctx context.Context, id, feedback string) (AnswerResult, error) {
	q.mu.Lock()
	cq, ok := q.questions[id]
	if !ok {
		q.mu.Unlock()
		return AnswerResult{}, ErrQuestionNotFound
	}
	q.seq[id]++
	mySeq := q.seq[id]
	q.inflight[id] = mySeq
	text := q.draft.Current(id)
	req := model.RetrieveRequest{Query: text, SessionID: q.sessionID}
	if !cq.local {
		qid := id
		req.QuestionID = &qid
	}
	if fb := strings.TrimSpace(feedback); fb != "" {
		req.Feedback = &fb
	}
	q.mu.Unlock()

	resp, err := q.pia.Generate(ctx, req)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seq[id] != mySeq {
		return AnswerResult{Kind: AnswerSuperseded, QuestionID: id}, nil
	}
	delete(q.inflight, id)
	cq, ok = q.questions[id]
	if !ok {
		return AnswerResult{Kind: AnswerSuperseded, QuestionID: id}, nil
	}
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return AnswerResult{}, err
		}
		q.logger.Warn("generate answer failed", "session", q.sessionID, "question", id, "error", err)
		cq.answerErr = "Failed to generate an answer. Please try again."
		q.dropdown[id] = true
		return AnswerResult{Kind: AnswerFailed, QuestionID: id, Reason: cq.answerErr}, nil
	}

	newID := id
	if resp.QuestionID != "" {
		newID = resp.QuestionID
	}
	now := time.Now()
	q.applyAnswerLocked(id, newID, text, resp.Answer, derefString(req.Feedback), now)
	q.dropdown[newID] = true
	q.invalidateLocked(ctx)
	return AnswerResult{Kind: AnswerOK, QuestionID: newID, Answer: resp.Answer}, nil
}

// applyAnswerLocked stores a generated answer and replaces the question id in
// place when the backend issued a new one.
func (q *Questionnaire) applyAnswerLocked(oldID, newID, text, answer, feedback string, at time.Time) {
	cq := q.questions[oldID]
	if newID != oldID {
		var prior []model.Chat
		if _, taken := q.questions[newID]; taken {
			if r := q.removeLocked(newID); r != nil {
				prior = r.history
			}
		}
		for i, id := range q.order {
			if id == oldID {
				q.order[i] = newID
			}
		}
		delete(q.questions, oldID)
		cq.id = newID
		q.questions[newID] = cq
		q.draft.Rename(oldID, newID)
		q.history[newID] = append(prior, q.history[oldID]...)
		delete(q.history, oldID)
		q.dropdown[newID], q.feedback[newID] = q.dropdown[oldID], q.feedback[oldID]
		delete(q.dropdown, oldID)
		delete(q.feedback, oldID)
		q.seq[newID] = max(q.seq[newID], q.seq[oldID])
	}
	cq.answer = answer
	cq.answerErr = ""
	cq.updatedAt = at
	cq.local = false
	q.history[newID] = append(q.history[newID], model.Chat{
		QuestionID: newID,
		Question:   text,
		Answer:     answer,
		Feedback:   feedback,
		UpdatedAt:  at,
	})
	q.draft.Commit(map[string]string{newID: text})
}

// SaveChanged regenerates every question whose text changed, in one bulk
// call. Afterwards the diff set is empty.
func (q *Questionnaire) SaveChanged(ctx context.Context) ([]AnswerResult, error) {
	q.mu.Lock()
	ids := q.draft.ChangedIn(q.order)
	if len(ids) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	reqs := make([]model.RetrieveRequest, 0, len(ids))
	texts := make([]string, 0, len(ids))
	for _, id := range ids {
		text := q.draft.Current(id)
		req := model.RetrieveRequest{Query: text, SessionID: q.sessionID}
		if !q.questions[id].local {
			qid := id
			req.QuestionID = &qid
		}
		reqs = append(reqs, req)
		texts = append(texts, text)
	}
	q.mu.Unlock()

	results, err := q.pia.BulkGenerate(ctx, model.BulkRetrieveRequest{Requests: reqs})
	if err != nil {
		return nil, fmt.Errorf("bulk generate failed: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	out := make([]AnswerResult, 0, len(ids))
	for i, id := range ids {
		if _, ok := q.questions[id]; !ok {
			continue
		}
		res, found := matchResult(results, id, i)
		if !found {
			q.draft.Commit(map[string]string{id: texts[i]})
			out = append(out, AnswerResult{Kind: AnswerFailed, QuestionID: id, Reason: "No answer available"})
			continue
		}
		newID := id
		if res.QuestionID != "" {
			newID = res.QuestionID
		}
		q.applyAnswerLocked(id, newID, texts[i], res.Answer, "", now)
		out = append(out, AnswerResult{Kind: AnswerOK, QuestionID: newID, Answer: res.Answer})
	}
	q.invalidateLocked(ctx)
	return out, nil
}

// matchResult pairs a bulk result with its request, by question id when the
// backend echoes it and by position otherwise.
func matchResult(results []model.RetrieveResponse, id string, index int) (model.RetrieveResponse, bool) {
	for _, r := range results {
		if r.QuestionID == id {
			return r, true
		}
	}
	if index < len(results) {
		return results[index], true
	}
	return model.RetrieveResponse{}, false
}

type chatRemoval struct {
	index    int
	question *chatQuestion
	history  []model.Chat
	draft    draftEntry
	dropdown bool
	feedback bool
}

func (q *Questionnaire) removeLocked(id string) *chatRemoval {
	idx := -1
	for i, oid := range q.order {
		if oid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	r := &chatRemoval{
		index:    idx,
		question: q.questions[id],
		history:  q.history[id],
		draft:    q.draft.remove(id),
		dropdown: q.dropdown[id],
		feedback: q.feedback[id],
	}
	q.order = append(q.order[:idx:idx], q.order[idx+1:]...)
	delete(q.questions, id)
	delete(q.history, id)
	delete(q.dropdown, id)
	delete(q.feedback, id)
	if _, ok := q.inflight[id]; ok {
		delete(q.inflight, id)
		q.seq[id]++
	}
	return r
}

func (q *Questionnaire) undoRemoveLocked(r *chatRemoval) {
	id := r.question.id
	idx := min(r.index, len(q.order))
	q.order = append(q.order[:idx], append([]string{id}, q.order[idx:]...)...)
	q.questions[id] = r.question
	q.history[id] = r.history
	q.draft.restore(id, r.draft)
	if r.dropdown {
		q.dropdown[id] = true
	}
	if r.feedback {
		q.feedback[id] = true
	}
}

// Remove drops the question from every piece of local state at once, then
// deletes it on the backend. If that fails the question is put back.
func (q *Questionnaire) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	r := q.removeLocked(id)
	q.mu.Unlock()
	if r == nil {
		return ErrQuestionNotFound
	}
	if r.question.local {
		return nil
	}

	if err := q.ropa.RemoveQuestion(ctx, q.sessionID, id); err != nil {
		q.mu.Lock()
		q.undoRemoveLocked(r)
		q.mu.Unlock()
		q.logger.Warn("remove question failed, restored", "session", q.sessionID, "question", id, "error", err)
		return fmt.Errorf("remove question failed: %w", err)
	}
	q.mu.Lock()
	q.invalidateLocked(ctx)
	q.mu.Unlock()
	return nil
}

func (q *Questionnaire) History(id string) ([]model.Chat, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.questions[id]; !ok {
		return nil, ErrQuestionNotFound
	}
	h := q.history[id]
	out := make([]model.Chat, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Pairs returns the displayed question text and latest answer of each
// question, in display order.
func (q *Questionnaire) Pairs() []export.QAPair {
	q.mu.Lock()
	defer q.mu.Unlock()
	pairs := make([]export.QAPair, 0, len(q.order))
	for _, id := range q.order {
		pairs = append(pairs, export.QAPair{Question: q.draft.Current(id), Answer: q.questions[id].answer})
	}
	return pairs
}

func (q *Questionnaire) Download(w io.Writer) error {
	return export.WriteQA(w, q.Pairs())
}

func (q *Questionnaire) invalidateLocked(ctx context.Context) {
	if q.cache == nil {
		return
	}
	_ = q.cache.MarkDirty(ctx, q.clientID, q.sessionID)
	_ = q.cache.DeleteHistory(ctx, q.clientID, q.sessionID)
}
