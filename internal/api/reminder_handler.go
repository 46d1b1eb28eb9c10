package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sms-reminder-service/internal/api/dto"
	"sms-reminder-service/internal/domain"
	"sms-reminder-service/internal/services"
	"sms-reminder-service/internal/types"
	"sms-reminder-service/internal/worker"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	reminderService services.ReminderService
	jobManager      *worker.JobManager
	appCtx          context.Context
}

func NewHandler(reminderService services.ReminderService, jobManager *worker.JobManager, ctx context.Context) *Handler {
	return &Handler{
		reminderService: reminderService,
		jobManager:      jobManager,
		appCtx:          ctx,
	}
}

// createReminderHandler
// @Summary      Creates a new reminder
// @Description  Stores a reminder with an explicit absolute fire time.
// @Tags         Reminders
// @Accept       json
// @Produce      json
// @Param        reminder  body      dto.CreateReminderRequest  true  "Reminder Information"
// @Success      201  {object}  dto.CreateReminderResponse
// @Failure      400  {object}  dto.StatusResponse
// @Failure      409  {object}  dto.StatusResponse
// @Failure      500  {object}  dto.StatusResponse
// @Router       /sms/create [post]
func (h *Handler) createReminderHandler(c *gin.Context) {
	var req dto.CreateReminderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Success: false, Message: "Invalid Request: " + err.Error()})
		return
	}

	fireAt, err := parseAbsoluteTime(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Success: false, Message: "时间格式错误: " + err.Error()})
		return
	}

	reminder, err := h.reminderService.CreateReminder(c.Request.Context(),
		req.UUID, req.Content, req.TargetNumber, fireAt, req.IsCirculation, req.CirculationInterval)
	if err != nil {
		h.writeCreateError(c, req.UUID, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateReminderResponse{
		Success:       true,
		Message:       "提醒任务创建成功",
		UUID:          reminder.UUID,
		ScheduledTime: reminder.FireAt.Format(time.RFC3339),
	})
}

// getReminderHandler
// @Summary      Gets a reminder
// @Description  Fetches one reminder by its uuid.
// @Tags         Reminders
// @Produce      json
// @Param        uuid  path  string  true  "reminder uuid"
// @Success      200  {object}  dto.ReminderResponse
// @Failure      404  {object}  dto.StatusResponse
// @Failure      500  {object}  dto.StatusResponse
// @Router       /sms/list/{uuid} [get]
func (h *Handler) getReminderHandler(c *gin.Context) {
	uuid := c.Param("uuid")

	reminder, err := h.reminderService.GetReminder(c.Request.Context(), uuid)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.StatusResponse{Success: false, Message: "未找到该用户的提醒任务"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "服务器错误"})
		return
	}

	c.JSON(http.StatusOK, dto.ReminderResponse{Success: true, Data: toReminderData(*reminder)})
}

// deleteReminderHandler
// @Summary      Deletes a reminder
// @Description  Removes one reminder by its uuid.
// @Tags         Reminders
// @Produce      json
// @Param        uuid  path  string  true  "reminder uuid"
// @Success      200  {object}  dto.StatusResponse
// @Failure      404  {object}  dto.StatusResponse
// @Failure      500  {object}  dto.StatusResponse
// @Router       /sms/delete/{uuid} [delete]
func (h *Handler) deleteReminderHandler(c *gin.Context) {
	uuid := c.Param("uuid")

	if err := h.reminderService.DeleteReminder(c.Request.Context(), uuid); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.StatusResponse{Success: false, Message: "提醒任务不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "服务器错误"})
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{Success: true, Message: "提醒任务删除成功"})
}

// agentCreateReminderHandler
// @Summary      Agent-compatible create endpoint
// @Description  Accepts simplified parameters (uuid, content, phone, HH:MM time,
// free-text repeat rule) via query string, form, or JSON body. Returns a usage
// document when the required parameters are missing.
// @Tags         Reminders
// @Produce      json
// @Success      200
// @Success      201  {object}  dto.AgentCreateResponse
// @Failure      400  {object}  dto.StatusResponse
// @Router       / [post]
func (h *Handler) agentCreateReminderHandler(c *gin.Context) {
	params := agentParams(c)

	uuid := params["uuid"]
	content := params["content"]
	phone := params["phone"]
	timeOfDay := params["time"]
	if timeOfDay == "" {
		timeOfDay = "09:00"
	}
	repeat := params["repeat"]

	if uuid == "" || content == "" {
		c.JSON(http.StatusOK, gin.H{
			"service": "SMS Webhook定时提醒程序",
			"version": "1.1",
			"message": "请提供必要参数",
			"required_params": gin.H{
				"uuid":    "用户唯一标识",
				"content": "短信内容",
				"phone":   "手机号",
				"time":    "提醒时间（HH:MM格式，如21:10）",
				"repeat":  "重复规则（可选）：每天/每周日/每周一/等",
			},
			"standard_api": "POST /api/sms/create",
			"example":      "/?uuid=test001&content=开会提醒&phone=13800138000&time=21:10&repeat=每周日",
		})
		return
	}

	if phone == "" {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Success: false, Message: "缺少必需参数：uuid, content, phone"})
		return
	}

	reminder, err := h.reminderService.CreateScheduledReminder(c.Request.Context(), uuid, content, phone, timeOfDay, repeat)
	if err != nil {
		h.writeCreateError(c, uuid, err)
		return
	}

	resp := dto.AgentCreateResponse{
		Success:       true,
		Message:       "提醒任务创建成功",
		UUID:          reminder.UUID,
		ScheduledTime: reminder.FireAt.Format(time.RFC3339),
		IsCirculation: reminder.IsRecurring,
		NextTrigger:   reminder.FireAt.Format("2006-01-02 15:04:05"),
	}
	if reminder.IsRecurring {
		interval := reminder.RecurrenceInterval
		resp.CirculationInterval = &interval
	}

	c.JSON(http.StatusCreated, resp)
}

// getSentRemindersHandler
// @Param        page  query  int  false  "page number"
// @Param        pageSize  query  int  false  "size of page"
// @Summary      Gets sent reminders
// @Description  Fetches reminders that have been dispatched, newest first.
// @Tags         Reminders
// @Produce      json
// @Success      200  {object}  dto.SentRemindersResponse
// @Success      204
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /sms/sent [get]
func (h *Handler) getSentRemindersHandler(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid page number"})
		return
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid page size"})
		return
	}

	sentReminders, totalCount, err := h.reminderService.GetSentReminders(c.Request.Context(), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "unexpected error occurred while fetching sent reminders."})
		return
	}

	if len(sentReminders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	reminders := make([]dto.ReminderData, len(sentReminders))
	for i, reminder := range sentReminders {
		reminders[i] = toReminderData(reminder)
	}

	c.JSON(http.StatusOK, dto.SentRemindersResponse{Reminders: reminders, Total: totalCount})
}

// toggleJobHandler
// @Summary      Starts or stops the reminder dispatch job
// @Description  Toggles the dispatch job based on its current state.
// @Tags         Reminders
// @Produce      json
// @Success      200  {object}  dto.JobResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /sms/toggle-job [put]
func (h *Handler) toggleJobHandler(c *gin.Context) {
	var err error
	var response dto.JobResponse

	if h.jobManager.IsRunning() {
		err = h.jobManager.Stop()
		response = dto.JobResponse{Status: "stopped"}
	} else {
		err = h.jobManager.Start(h.appCtx)
		response = dto.JobResponse{Status: "started"}
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// healthHandler
// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *Handler) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (h *Handler) writeCreateError(c *gin.Context, uuid string, err error) {
	switch {
	case errors.Is(err, types.ErrDuplicateUUID):
		c.JSON(http.StatusConflict, dto.StatusResponse{Success: false, Message: "UUID已存在: " + uuid})
	case errors.Is(err, types.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Success: false, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.StatusResponse{Success: false, Message: "服务器错误"})
	}
}

// agentParams collects parameters from the JSON body when present, falling
// back to query string and form values.
func agentParams(c *gin.Context) map[string]string {
	params := make(map[string]string)

	if c.Request.Method == http.MethodPost && strings.Contains(c.ContentType(), "application/json") {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err == nil {
			for k, v := range body {
				params[k] = fmt.Sprint(v)
			}
		}
	}

	for _, key := range []string{"uuid", "content", "phone", "time", "repeat"} {
		if params[key] != "" {
			continue
		}
		if v := c.Query(key); v != "" {
			params[key] = v
		} else if v := c.PostForm(key); v != "" {
			params[key] = v
		}
	}

	return params
}

// parseAbsoluteTime accepts RFC3339 or the plain "2006-01-02 15:04:05"
// layout, the latter interpreted in server-local time.
func parseAbsoluteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
}

func toReminderData(reminder domain.Reminder) dto.ReminderData {
	data := dto.ReminderData{
		UUID:          reminder.UUID,
		Content:       reminder.Content,
		TargetNumber:  reminder.TargetNumber,
		Time:          reminder.FireAt.Format(time.RFC3339),
		IsCirculation: reminder.IsRecurring,
		IsSent:        reminder.Sent,
	}
	if reminder.IsRecurring {
		interval := reminder.RecurrenceInterval
		data.CirculationInterval = &interval
	}
	if reminder.LastSentAt != nil {
		lastSent := reminder.LastSentAt.Format(time.RFC3339)
		data.LastSentTime = &lastSent
	}
	return data
}
