package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	eventsvc "github.com/trezcool/academia/services/events"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

var (
	bgCtx = context.Background()

	conf      *core.Config
	usrRepo   user.Repository
	crsRepo   course.Repository
	quizRepo  quiz.Repository
	notifRepo notification.Repository
	quizSvc   quiz.Service
	events    *eventsvc.PublisherMock
	mailSvc   *emailsvc.ConsoleServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func setup(t *testing.T, configure ...func(*core.Config)) Server {
	conf = core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := &testutil.NopLogger{}
	core.ParseEmailTemplates(conf, logger)
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	crsRepo = inmemdb.NewCourseRepository(db)
	quizRepo = inmemdb.NewQuizRepository(db)
	notifRepo = inmemdb.NewNotificationRepository(db)

	// set up services
	events = eventsvc.NewPublisherMock()
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	quizSvc = quiz.NewService(quiz.ServiceDeps{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		Repo:       quizRepo,
		StatsRepo:  inmemdb.NewStatsRepository(db),
		CourseRepo: crsRepo,
		UserRepo:   usrRepo,
		NotifRepo:  notifRepo,
		MailSvc:    mailSvc,
		Events:     events,
	})

	// set up server
	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(usrRepo),
		CourseSvc:  course.NewService(crsRepo),
		QuizSvc:    quizSvc,
		NotifSvc:   notification.NewService(notifRepo),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// community sets up a course taught by a teacher with one enrolled learner & one outsider.
type community struct {
	admin    user.User
	teacher  user.User
	learner  user.User
	outsider user.User
	crs      course.Course
}

func newCommunity(t *testing.T) community {
	c := community{
		admin:    testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.AdminRoles, true),
		teacher:  testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true),
		learner:  testutil.CreateUser(t, usrRepo, "Learner", "learner", "learner@test.cd", "", []string{user.RoleStudent}, true),
		outsider: testutil.CreateUser(t, usrRepo, "Outsider", "outsider", "outsider@test.cd", "", []string{user.RoleStudent}, true),
	}
	c.crs = testutil.CreateCourse(t, crsRepo, c.teacher, "Go 101")
	testutil.Enroll(t, crsRepo, c.learner, c.crs)
	return c
}

func (c community) createQuiz(t *testing.T, passingScore, attemptsAllowed int) quiz.Quiz {
	qz, err := quizSvc.Create(bgCtx, c.teacher, c.crs.ID, testutil.SampleQuiz(passingScore, attemptsAllowed))
	require.NoError(t, err)
	return qz
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
