package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bidcraft/bidwriter/internal/outline"
	"github.com/bidcraft/bidwriter/internal/workflow"
)

type saveInputRequest struct {
	TechContent  string `json:"tech_content"`
	ScoreContent string `json:"score_content"`
}

func (s *Server) handleSaveInput(c *gin.Context) {
	var req saveInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求体必须是包含 tech_content 和 score_content 的 JSON")
		return
	}

	if err := s.wf.SaveInputs(c.Request.Context(), req.TechContent, req.ScoreContent); err != nil {
		s.logger.Error("saving inputs failed", "error", err)
		respondError(c, http.StatusInternalServerError, "保存失败："+err.Error())
		return
	}

	respondOK(c, "技术要求和评分标准保存成功", nil)
}

func (s *Server) handleGenerateOutline(c *gin.Context) {
	result, err := s.wf.GenerateOutline(c.Request.Context())
	if err != nil {
		s.logger.Error("outline generation failed", "error", err)

		status := http.StatusInternalServerError
		var validationErr *outline.ValidationError
		switch {
		case errors.Is(err, workflow.ErrInputMissing), errors.Is(err, workflow.ErrInputEmpty):
			status = http.StatusBadRequest
		case errors.As(err, &validationErr):
			status = http.StatusBadGateway
		}
		respondError(c, status, "大纲生成失败："+err.Error())
		return
	}

	respondOK(c, "大纲生成成功", gin.H{
		"outline":    result,
		"md_content": result.Markdown(),
	})
}

func (s *Server) handleGenerateContent(c *gin.Context) {
	current, err := s.wf.LoadOutline(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, workflow.ErrNoOutline) {
			status = http.StatusBadRequest
		}
		respondError(c, status, "加载大纲失败："+err.Error())
		return
	}

	ok, _ := s.wf.ExpandAndAssemble(c.Request.Context(), current)
	if !ok {
		respondOK(c, "内容生成完成，但部分章节生成失败，请检查文档中的占位标记", gin.H{"all_succeeded": false})
		return
	}
	respondOK(c, "内容生成成功", gin.H{"all_succeeded": true})
}

func (s *Server) handleGenerateDocument(c *gin.Context) {
	current, err := s.wf.LoadOutline(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, workflow.ErrNoOutline) {
			status = http.StatusBadRequest
		}
		respondError(c, status, "加载大纲失败："+err.Error())
		return
	}

	ok, document := s.wf.ExpandAndAssemble(c.Request.Context(), current)
	respondOK(c, documentMessage(ok), gin.H{
		"all_succeeded":    ok,
		"document_content": document,
	})
}

func documentMessage(ok bool) string {
	if ok {
		return "文档生成成功"
	}
	return "文档已生成，但部分章节生成失败"
}

func (s *Server) handleProgress(c *gin.Context) {
	respondOK(c, "success", s.wf.Progress())
}

func (s *Server) handleListPrompts(c *gin.Context) {
	respondOK(c, "success", s.prompts.All())
}

type savePromptRequest struct {
	Key     string  `json:"key"`
	Content *string `json:"content"`
}

func (s *Server) handleSavePrompt(c *gin.Context) {
	var req savePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || req.Content == nil {
		respondError(c, http.StatusBadRequest, "缺少必要参数：key 或 content")
		return
	}

	if err := s.prompts.Save(req.Key, *req.Content); err != nil {
		s.logger.Error("saving prompt failed", "key", req.Key, "error", err)
		respondError(c, http.StatusInternalServerError, "保存提示词失败："+err.Error())
		return
	}
	respondOK(c, "提示词保存成功", nil)
}

func (s *Server) handleDeletePrompt(c *gin.Context) {
	deleted, err := s.prompts.Delete(c.Param("key"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "删除提示词失败："+err.Error())
		return
	}
	if !deleted {
		respondError(c, http.StatusBadRequest, "删除失败：不允许删除系统提示词，或该自定义提示词不存在")
		return
	}
	respondOK(c, "提示词删除成功", nil)
}

func (s *Server) handleResetPrompt(c *gin.Context) {
	if err := s.prompts.Reset(c.Param("key")); err != nil {
		respondError(c, http.StatusBadRequest, "重置提示词失败："+err.Error())
		return
	}
	respondOK(c, "提示词重置为默认值成功", nil)
}
