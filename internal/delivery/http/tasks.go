package http

import (
	"errors"
	"net/http"
	"strconv"

	"cronfetch/internal/dto"
	"cronfetch/internal/model"
	"cronfetch/internal/service"
	"cronfetch/pkg/utils"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// userIDHeader stands in for the auth collaborator, which is out of scope.
const userIDHeader = "X-User-ID"

func (h *HttpAPIHandler) SetupTasks(base *echo.Group) {
	v1 := base.Group("/v1/tasks")
	{
		v1.POST("", h.CreateTask)
		v1.GET("", h.ListTasks)
		v1.GET("/:id", h.GetTask)
		v1.PUT("/:id", h.UpdateTask)
		v1.DELETE("/:id", h.SoftDeleteTask)
		v1.DELETE("/:id/hard", h.HardDeleteTask)
		v1.GET("/:id/logs", h.ListTaskLogs)
		v1.POST("/restore", h.RestoreSchedules)
	}
}

func (h *HttpAPIHandler) CreateTask(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing user id", nil))
	}

	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	task, err := h.service.TaskService.Create(c.Request().Context(), req.ToModel(userID))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Task created", task))
}

func (h *HttpAPIHandler) UpdateTask(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing user id", nil))
	}

	var req dto.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	update := req.ToModel(c.Param("id"))
	update.UserID = userID
	task, err := h.service.TaskService.Update(c.Request().Context(), update)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Task updated", task))
}

func (h *HttpAPIHandler) GetTask(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	task, err := h.service.TaskService.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", task))
}

func (h *HttpAPIHandler) ListTasks(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing user id", nil))
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	tasks, nextCursor, err := h.service.TaskService.List(c.Request().Context(), &model.GetTaskParam{
		UserID: utils.ToPointer(userID),
		Cursor: c.QueryParam("cursor"),
		Limit:  limit,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", dto.ListTasksResponse{
		Tasks:      tasks,
		NextCursor: nextCursor,
	}))
}

func (h *HttpAPIHandler) SoftDeleteTask(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing user id", nil))
	}

	if err := h.service.TaskService.SoftDelete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Task deleted", nil))
}

func (h *HttpAPIHandler) HardDeleteTask(c echo.Context) error {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing user id", nil))
	}

	if err := h.service.TaskService.HardDelete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Task permanently deleted", nil))
}

func (h *HttpAPIHandler) ListTaskLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	logs, err := h.service.TaskService.ListLogs(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", logs))
}

func (h *HttpAPIHandler) RestoreSchedules(c echo.Context) error {
	response := dto.NewSuccessResponse("Schedule restore started", nil)
	if err := h.service.Reconciler.Run(c.Request().Context()); err != nil {
		response.Code = http.StatusInternalServerError
		response.Message = err.Error()
	}
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidCron), errors.Is(err, service.ErrTooFrequent):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrTaskNameConflict), errors.Is(err, service.ErrTaskDeletedConflict):
		code = http.StatusConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = http.StatusNotFound
	}
	return c.JSON(code, dto.NewBaseResponse(code, err.Error(), nil))
}
