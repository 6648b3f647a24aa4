package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/quiz"
	"github.com/trezcool/academia/core/user"
)

// attemptOrderings maps the API ordering fields to their column.
var attemptOrderings = map[string]string{
	"startedAt":   "started_at",
	"completedAt": "completed_at",
	"score":       "score",
}

type quizApi struct {
	svc      quiz.Service
	usrSvc   user.Service
	validate *validator.Validate
	metrics  *metrics
}

func registerQuizAPI(cg *echo.Group, api quizApi, submitLimiter echo.MiddlewareFunc) {
	qg := cg.Group("/quizzes")
	qg.GET("", api.query)
	qg.POST("", api.create, staffMiddleware())

	dg := qg.Group("/:quizId")
	dg.GET("", api.retrieve)
	dg.POST("/submit", api.submit, submitLimiter)
	dg.GET("/attempts", api.queryAttempts)
	dg.GET("/attempts/:attemptId", api.retrieveAttempt)
	dg.GET("/stats", api.stats, staffMiddleware())
}

// Handlers

func (api *quizApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	quizzes, err := api.svc.Query(ctx.Request().Context(), usr, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.svc.Create(ctx.Request().Context(), usr, ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	qz, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("courseId"), ctx.Param("quizId"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data quiz.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("courseId"), ctx.Param("quizId"), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	api.metrics.observeSubmission(res.Score, res.IsPassed, res.FirstPass)
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) queryAttempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, attemptOrderings)

	attempts, err := api.svc.QueryAttempts(
		ctx.Request().Context(), usr, ctx.Param("courseId"), ctx.Param("quizId"), ordering.Orderings,
	)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) retrieveAttempt(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	attempt, err := api.svc.GetAttempt(
		ctx.Request().Context(), usr, ctx.Param("courseId"), ctx.Param("quizId"), ctx.Param("attemptId"),
	)
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

func (api *quizApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), usr, ctx.Param("courseId"), ctx.Param("quizId"))
	if err != nil {
		return errors.Wrap(err, "getting quiz stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
