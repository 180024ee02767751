package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/go-demo/studyroom/internal/dto/request"
	"github.com/go-demo/studyroom/internal/dto/response"
	"github.com/go-demo/studyroom/internal/middleware"
	"github.com/go-demo/studyroom/internal/pkg/utils"
	"github.com/go-demo/studyroom/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// Create godoc
// @Summary 創建自習室
// @Description 創建新的自習室
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.CreateRoomRequest true "自習室資料"
// @Success 201 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Router /api/v1/rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req request.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "請求格式錯誤")
		return
	}

	v := utils.NewValidator()
	v.ValidateRoomName("name", req.Name)
	if v.HasErrors() {
		response.ValidationError(c, v.Errors())
		return
	}

	userID := middleware.GetUserID(c)

	rm, err := h.roomService.CreateRoom(c.Request.Context(), userID, &service.CreateRoomInput{
		Name:         req.Name,
		Description:  req.Description,
		SubjectID:    req.SubjectID,
		Tags:         req.Tags,
		Capacity:     req.Capacity,
		IsPrivate:    req.IsPrivate,
		AccessSecret: req.AccessSecret,
		WorkMinutes:  req.WorkMinutes,
		BreakMinutes: req.BreakMinutes,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	snap, err := h.roomService.GetRoom(c.Request.Context(), rm.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewRoomDetailResponse(snap))
}

// Get godoc
// @Summary 獲取自習室詳情
// @Description 獲取自習室的完整快照，包含成員、聊天記錄與計時器狀態
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "自習室 ID"
// @Success 200 {object} response.Response{data=response.RoomDetailResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	roomID := c.Param("id")

	if !utils.ValidateUUID(roomID) {
		response.BadRequest(c, "無效的自習室 ID")
		return
	}

	snap, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomDetailResponse(snap))
}

// List godoc
// @Summary 獲取自習室列表
// @Description 獲取所有尚未結束的自習室
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "頁碼" default(1)
// @Param limit query int false "每頁數量" default(20)
// @Success 200 {object} response.Response{data=response.RoomListResponse}
// @Router /api/v1/rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	var req request.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		req = request.PaginationRequest{Page: 1, Limit: 20}
	}

	rooms, err := h.roomService.ListOpenRooms(c.Request.Context(), req.Limit, req.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomListResponse(rooms, req.Page, req.Limit))
}

// ListMine godoc
// @Summary 獲取我主持的自習室
// @Description 獲取當前用戶主持的自習室
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "頁碼" default(1)
// @Param limit query int false "每頁數量" default(20)
// @Success 200 {object} response.Response{data=response.RoomListResponse}
// @Router /api/v1/rooms/me [get]
func (h *RoomHandler) ListMine(c *gin.Context) {
	var req request.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		req = request.PaginationRequest{Page: 1, Limit: 20}
	}

	userID := middleware.GetUserID(c)

	rooms, err := h.roomService.ListRoomsByHost(c.Request.Context(), userID, req.Limit, req.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomListResponse(rooms, req.Page, req.Limit))
}

// Search godoc
// @Summary 搜尋自習室
// @Description 依名稱或標籤搜尋自習室
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param q query string true "搜尋關鍵字"
// @Param page query int false "頁碼" default(1)
// @Param limit query int false "每頁數量" default(20)
// @Success 200 {object} response.Response{data=response.RoomListResponse}
// @Router /api/v1/rooms/search [get]
func (h *RoomHandler) Search(c *gin.Context) {
	var req request.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "搜尋關鍵字為必填")
		return
	}

	rooms, err := h.roomService.SearchRooms(c.Request.Context(), req.Query, req.Limit, req.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomListResponse(rooms, req.Page, req.Limit))
}

// End godoc
// @Summary 結束自習室
// @Description 結束自習室（僅房主可操作），重複結束視為成功
// @Tags 自習室
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "自習室 ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{id}/end [post]
func (h *RoomHandler) End(c *gin.Context) {
	roomID := c.Param("id")
	userID := middleware.GetUserID(c)

	if !utils.ValidateUUID(roomID) {
		response.BadRequest(c, "無效的自習室 ID")
		return
	}

	if err := h.roomService.EndRoom(c.Request.Context(), roomID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "自習室已結束", nil)
}
