package router

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/api/handler"
	"github.com/Muco0l/RecruitFlow-AI-ATS/internal/processor"
)

// statusForError 把流水线错误族映射为HTTP状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, processor.ErrJobNotFound),
		errors.Is(err, processor.ErrCandidateNotFound):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrMailDisabled),
		errors.Is(err, processor.ErrNotifyBatchInFlight):
		return consts.StatusConflict
	case errors.Is(err, processor.ErrLLMUnavailable):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

func fail(ctx *app.RequestContext, err error) {
	ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
}

// RegisterRoutes 注册 API 路由
// apiKey 非空时对 /api/v1 分组开启 X-API-Key 鉴权
func RegisterRoutes(h *server.Hertz, jobHandler *handler.JobHandler, apiKey string) {
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if apiKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	api.POST("/jobs", func(c context.Context, ctx *app.RequestContext) {
		var req handler.CreateJobRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
			return
		}
		if req.Title == "" || req.Description == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "title和description不能为空"})
			return
		}
		resp, err := jobHandler.HandleCreateJob(c, &req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/jobs", func(c context.Context, ctx *app.RequestContext) {
		resp, err := jobHandler.HandleListJobs(c)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"jobs": resp})
	})

	api.GET("/jobs/:job_id", func(c context.Context, ctx *app.RequestContext) {
		resp, err := jobHandler.HandleGetJob(c, ctx.Param("job_id"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/jobs/:job_id/matches", func(c context.Context, ctx *app.RequestContext) {
		resp, err := jobHandler.HandleListMatches(c, ctx.Param("job_id"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 按邮箱精确查询, 例如 /candidates?email=alice@example.com
	api.GET("/candidates", func(c context.Context, ctx *app.RequestContext) {
		resp, err := jobHandler.HandleGetCandidate(c, ctx.Query("email"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 多文件上传, 表单字段名 "files"
	api.POST("/jobs/:job_id/resumes", func(c context.Context, ctx *app.RequestContext) {
		form, err := ctx.MultipartForm()
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "multipart表单解析失败"})
			return
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到, 请使用files字段上传"})
			return
		}

		files := make([]handler.UploadedResume, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
				return
			}
			files = append(files, handler.UploadedResume{Filename: fh.Filename, Data: data})
		}

		result, err := jobHandler.HandleResumeUpload(c, ctx.Param("job_id"), files)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})

	api.POST("/jobs/:job_id/process", func(c context.Context, ctx *app.RequestContext) {
		var req struct {
			ResumeDir string `json:"resume_dir"`
		}
		// 允许空请求体, 此时退回配置目录
		_ = ctx.BindJSON(&req)

		result, err := jobHandler.HandleProcessDirectory(c, ctx.Param("job_id"), req.ResumeDir)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})

	api.POST("/jobs/:job_id/notify", func(c context.Context, ctx *app.RequestContext) {
		result, err := jobHandler.HandleNotify(c, ctx.Param("job_id"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})
}
