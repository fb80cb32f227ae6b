package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/LJTian/HarareMetro/internal/processor"
	"github.com/LJTian/HarareMetro/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewsReader 读取 latest_news 原始字符串
type NewsReader interface {
	LatestRaw(ctx context.Context) (string, bool, error)
}

// UpdateRunner 执行一轮抓取
type UpdateRunner interface {
	Run(ctx context.Context) (*scheduler.UpdateResult, error)
}

// ArchiveLister 归档查询，未配置 Postgres 时为 nil
type ArchiveLister interface {
	ListArticles(ctx context.Context, category, source string, limit int) ([]processor.Article, error)
}

type Server struct {
	news    NewsReader
	updater UpdateRunner
	sources []collector.Source
	archive ArchiveLister
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	basicUser, basicPass string
}

type Option func(*Server)

func WithArchive(a ArchiveLister) Option {
	return func(s *Server) { s.archive = a }
}

// WithBasicAuth 用户名和密码都非空时启用全站 Basic Auth
func WithBasicAuth(user, pass string) Option {
	return func(s *Server) { s.basicUser, s.basicPass = user, pass }
}

// WithUpdateInterval 限制手动触发 /api/update 的频率；d<=0 表示不限制
func WithUpdateInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

func NewServer(news NewsReader, updater UpdateRunner, reg *collector.Registry, log *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{
		news:    news,
		updater: updater,
		sources: reg.Sources(),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewEngine 构建带访问日志、JSON 错误恢复和 CORS 的 gin 引擎
func NewEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.log), jsonRecovery(s.log))
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(corsMiddleware())
	if s.basicUser != "" && s.basicPass != "" {
		r.Use(basicAuthMiddleware(s.basicUser, s.basicPass))
	}

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/news", s.getNews)
		api.HEAD("/news", s.getNews)
		api.GET("/update", s.update)
		api.POST("/update", s.update)
		api.GET("/sources", s.listSources)
		if s.archive != nil {
			api.GET("/archive", s.listArchive)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getNews 原样返回快照字符串，不校验内容；没有快照时返回 []
func (s *Server) getNews(c *gin.Context) {
	raw, ok, err := s.news.LatestRaw(c.Request.Context())
	if err != nil {
		s.log.Errorf("read latest news failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok || raw == "" {
		raw = "[]"
	}
	c.Data(http.StatusOK, "application/json", []byte(raw))
}

func (s *Server) update(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "update requested too frequently, try again later"})
		return
	}

	res, err := s.updater.Run(c.Request.Context())
	if err != nil {
		s.log.Errorf("manual update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listSources(c *gin.Context) {
	c.JSON(http.StatusOK, s.sources)
}

func (s *Server) listArchive(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 50
	}

	list, err := s.archive.ListArticles(c.Request.Context(), c.Query("category"), c.Query("source"), limit)
	if err != nil {
		s.log.Errorf("list archive failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}
