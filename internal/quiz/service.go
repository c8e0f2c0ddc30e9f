package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/student"
)

// View is a quiz as shown to a student. It never carries answers or
// explanations.
type View struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	Status    Status        `json:"status"`
	Phase     student.Phase `json:"phase"`
	Recovery  bool          `json:"is_recovery_quiz"`
	Items     []ItemView    `json:"items"`
	Warnings  []string      `json:"warnings,omitempty"`
	Answered  int           `json:"answered"`
	CreatedAt time.Time     `json:"created_at"`
}

// ItemView is one question of a View.
type ItemView struct {
	Position int             `json:"position"`
	ItemID   string          `json:"item_id"`
	TopicKey string          `json:"topic"`
	Reason   selector.Reason `json:"reason"`
	Type     irt.ItemType    `json:"type"`
	Prompt   string          `json:"prompt"`
	Choices  []string        `json:"choices,omitempty"`
	Answered bool            `json:"answered"`
}

// NewView strips a session down to what the student may see.
func NewView(s *Session) *View {
	v := &View{
		ID:        s.ID,
		StudentID: s.StudentID,
		Status:    s.Status,
		Phase:     s.Phase,
		Recovery:  s.Recovery,
		Items:     make([]ItemView, 0, len(s.Items)),
		Answered:  s.Answered,
		CreatedAt: s.CreatedAt,
	}
	for _, it := range s.Items {
		v.Items = append(v.Items, ItemView{
			Position: it.Position,
			ItemID:   it.ItemID,
			TopicKey: it.TopicKey,
			Reason:   it.Reason,
			Type:     it.Type,
			Prompt:   it.Prompt,
			Choices:  append([]string(nil), it.Choices...),
			Answered: it.Response != nil,
		})
	}
	for _, w := range s.Warnings {
		v.Warnings = append(v.Warnings, w.String())
	}
	return v
}

// Ack confirms a recorded answer without revealing whether it was correct.
type Ack struct {
	QuizID   string `json:"quiz_id"`
	Position int    `json:"position"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

type studentRequest struct {
	StudentID string `validate:"required,max=128,excludesall=/"`
}

type quizRequest struct {
	StudentID string `validate:"required,max=128,excludesall=/"`
	QuizID    string `validate:"required,max=128"`
}

type answerRequest struct {
	StudentID string `validate:"required,max=128,excludesall=/"`
	QuizID    string `validate:"required,max=128"`
	Position  int    `validate:"gte=0"`
	Answer    string `validate:"required,max=512"`
}

// Service is the caller-facing quiz API. It validates requests, enforces
// quiz ownership, and bounds every call with the configured timeout.
type Service struct {
	lc       *Lifecycle
	students *student.Repository
	validate *validator.Validate
}

// NewService wraps lc.
func NewService(lc *Lifecycle) *Service {
	return &Service{
		lc:       lc,
		students: student.NewRepository(lc.kv),
		validate: validator.New(),
	}
}

// Lifecycle returns the underlying lifecycle.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lc
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{Field: fe.Field(), Err: fmt.Errorf("failed %q check", fe.Tag())}
	}
	return &ErrValidation{Field: "request", Err: err}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.lc.cfg.Timeout)
}

// GenerateQuiz returns the student's open quiz, creating it if needed.
// Repeated calls before completion return the same quiz.
func (s *Service) GenerateQuiz(ctx context.Context, studentID string) (*View, error) {
	if err := s.check(studentRequest{StudentID: studentID}); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st, _, err := s.students.Load(ctx, studentID)
	if err != nil {
		return nil, &ErrTransientStore{Op: "load student", Err: err}
	}
	sess, err := s.lc.Create(ctx, studentID, st.NextQuizKey())
	if err != nil {
		return nil, err
	}
	return NewView(sess), nil
}

// GetQuiz returns a quiz owned by studentID.
func (s *Service) GetQuiz(ctx context.Context, studentID, quizID string) (*View, error) {
	if err := s.check(quizRequest{StudentID: studentID, QuizID: quizID}); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.owned(ctx, studentID, quizID)
	if err != nil {
		return nil, err
	}
	return NewView(sess), nil
}

// SubmitAnswer records an answer to the item at position.
func (s *Service) SubmitAnswer(ctx context.Context, studentID, quizID string, position int, answer string) (*Ack, error) {
	req := answerRequest{StudentID: studentID, QuizID: quizID, Position: position, Answer: answer}
	if err := s.check(req); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.owned(ctx, studentID, quizID); err != nil {
		return nil, err
	}
	if _, err := s.lc.SubmitAnswer(ctx, quizID, position, answer, 0); err != nil {
		return nil, err
	}
	sess, err := s.lc.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return &Ack{QuizID: quizID, Position: position, Answered: sess.Answered, Total: len(sess.Items)}, nil
}

// CompleteQuiz grades the quiz and updates the student's abilities.
func (s *Service) CompleteQuiz(ctx context.Context, studentID, quizID string) (*Result, error) {
	if err := s.check(quizRequest{StudentID: studentID, QuizID: quizID}); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.owned(ctx, studentID, quizID); err != nil {
		return nil, err
	}
	return s.lc.Complete(ctx, quizID)
}

// Student returns a snapshot of the student's state.
func (s *Service) Student(ctx context.Context, studentID string) (*student.Student, error) {
	if err := s.check(studentRequest{StudentID: studentID}); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st, _, err := s.students.Load(ctx, studentID)
	if err != nil {
		return nil, &ErrTransientStore{Op: "load student", Err: err}
	}
	return st, nil
}

// owned loads a quiz and hides it from anyone but its student.
func (s *Service) owned(ctx context.Context, studentID, quizID string) (*Session, error) {
	sess, err := s.lc.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if sess.StudentID != studentID {
		return nil, &ErrNotFound{Kind: "quiz", ID: quizID}
	}
	return sess, nil
}
