// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

// DBEnvVar enables the tests running against a real postgres database (configured with the TEST_ env vars).
const DBEnvVar = "ACADEMIA_TEST_DB"

type NopLogger struct{}

var _ core.Logger = (*NopLogger)(nil)

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// NewValidator returns a validator with all the app validators registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	user.LoadCommonPasswords(&NopLogger{})
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, instructor user.User, title string) course.Course {
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:        title,
		InstructorID: instructor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func Enroll(t *testing.T, repo course.Repository, usr user.User, crs course.Course) course.Enrollment {
	enr, err := repo.CreateEnrollment(context.Background(), course.Enrollment{
		UserID:    usr.ID,
		CourseID:  crs.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return enr
}

func boolPtr(b bool) *bool { return &b }

// SampleQuiz has one question of each type, worth 10 points in total.
func SampleQuiz(passingScore, attemptsAllowed int) quiz.NewQuiz {
	return quiz.NewQuiz{
		Title:           "Go basics",
		Description:     "Check your Go fundamentals",
		PassingScore:    passingScore,
		AttemptsAllowed: attemptsAllowed,
		Questions: []quiz.NewQuestion{
			{
				Type:   quiz.MultipleChoice,
				Text:   "Which are Go keywords?",
				Points: 2,
				Options: []quiz.NewOption{
					{Text: "func", IsCorrect: true},
					{Text: "defer", IsCorrect: true},
					{Text: "class"},
				},
			},
			{Type: quiz.TrueFalse, Text: "Go has generics since 1.18", Points: 1, Answer: boolPtr(true)},
			{Type: quiz.FillBlank, Text: "The zero value of a pointer is ___", Points: 2, CorrectAnswers: []string{"nil"}},
			{
				Type:           quiz.ShortAnswer,
				Text:           "What does a goroutine do?",
				Points:         3,
				CorrectAnswers: []string{"lightweight concurrent function execution"},
			},
			{
				Type:   quiz.Matching,
				Text:   "Match the types with their zero values",
				Points: 2,
				Pairs: []quiz.NewPair{
					{Item: "int", Match: "0"},
					{Item: "string", Match: `""`},
				},
			},
		},
	}
}

// SampleAnswers returns answers to every question of qz, all correct or all wrong.
// qz must hold its correct answers.
func SampleAnswers(t *testing.T, qz quiz.Quiz, correct bool) []quiz.SubmittedAnswer {
	subs := make([]quiz.SubmittedAnswer, 0, len(qz.Questions))
	for _, q := range qz.Questions {
		var v interface{}
		switch q.Type {
		case quiz.MultipleChoice:
			ids := make([]string, 0)
			for _, ca := range q.CorrectAnswers {
				ids = append(ids, ca.OptionID)
			}
			if !correct {
				ids = ids[:1]
			}
			v = ids
		case quiz.TrueFalse:
			v = (len(q.CorrectAnswers) > 0) == correct
		case quiz.FillBlank, quiz.ShortAnswer:
			v = q.CorrectAnswers[0].Text
			if !correct {
				v = "no idea"
			}
		case quiz.Matching:
			pairs := make([]quiz.MatchPair, 0)
			for i, ca := range q.CorrectAnswers {
				pair := quiz.MatchPair{ItemID: ca.OptionID, MatchID: ca.MatchID}
				if !correct {
					pair.MatchID = q.CorrectAnswers[(i+1)%len(q.CorrectAnswers)].MatchID
				}
				pairs = append(pairs, pair)
			}
			v = pairs
		}
		subs = append(subs, quiz.SubmittedAnswer{QuestionID: q.ID, Answer: rawJSON(t, v)})
	}
	return subs
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("rawJSON() failed: %v", err)
	}
	return data
}

// PrepareDB returns a migrated, empty test database.
// The test is skipped unless DBEnvVar is set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv(DBEnvVar) == "" {
		t.Skipf("set %s=1 to run the database tests", DBEnvVar)
	}

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("creating database: %+v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("opening database: %+v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %+v", err)
	}
	TruncateTables(t, db)
	t.Cleanup(func() {
		TruncateTables(t, db)
		_ = db.Close()
	})
	return db
}

func TruncateTables(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE "user", course, enrollment, quiz, question, question_option, correct_answer,
		quiz_attempt, user_answer, notification CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
