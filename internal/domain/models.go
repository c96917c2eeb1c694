package domain

import "time"

// Mode distinguishes admin-paced sessions from self-paced ones.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Schedule bounds the window in which an offline session is accessible.
type Schedule struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Answer is one recorded submission. Immutable once appended.
type Answer struct {
	QuestionIndex int    `json:"questionIndex"`
	Option        string `json:"option"`
	Correct       bool   `json:"correct"`
	TimeRemaining int    `json:"timeRemaining"` // seconds left when submitted
	Points        int    `json:"points"`
}

// Participant is one named entrant embedded in a session. A disconnected
// participant is marked inactive rather than removed so the name and score
// survive transient drops.
type Participant struct {
	Name          string     `json:"name"`
	ConnectionRef string     `json:"connectionRef"`
	Score         int        `json:"score"`
	Answers       []Answer   `json:"answers"`
	Active        bool       `json:"active"`
	JoinedAt      time.Time  `json:"joinedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Standing is one row of the materialized ranking snapshot.
type Standing struct {
	Rank           int       `json:"rank"`
	Name           string    `json:"name"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalAnswers   int       `json:"totalAnswers"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Session is the shared document for one running test. All mutation goes
// through the store's conditional-update primitive; Version is the
// optimistic-concurrency fence and strictly increases with every accepted
// mutation.
type Session struct {
	Code              string        `json:"code"`
	QuizID            string        `json:"quizId"`
	Mode              Mode          `json:"mode"`
	Status            Status        `json:"status"`
	Capacity          int           `json:"capacity"`
	Schedule          *Schedule     `json:"schedule,omitempty"`
	CurrentQuestion   int           `json:"currentQuestion"`
	QuestionLive      bool          `json:"questionLive"`
	QuestionStartedAt time.Time     `json:"questionStartedAt"`
	AdminConnRef      string        `json:"adminConnRef,omitempty"`
	Version           int64         `json:"version"`
	Participants      []Participant `json:"participants"`
	Standings         []Standing    `json:"standings,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Option is a possible answer, keyed by letter as authored.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question models a single-choice question with a per-question time limit.
type Question struct {
	Content       string   `json:"content"`
	Options       []Option `json:"options"`
	CorrectOption string   `json:"correctOption"`
	TimeLimit     int      `json:"timeLimit"` // seconds; zero means the default
}

// Quiz is the read-only question set a session runs against.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Mode      Mode       `json:"mode"`
	Questions []Question `json:"questions"`
}

// TimeLimitOrDefault returns the question's answer window in seconds.
func (q Question) TimeLimitOrDefault() int {
	if q.TimeLimit <= 0 {
		return 30
	}
	return q.TimeLimit
}
