package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-comb/app/dedup"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/source"
	"github.com/lysyi3m/news-comb/app/storage"
	"github.com/lysyi3m/news-comb/app/tasks"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func NewHandler(configCache *source.ConfigCache, store storage.Store, generator GeneratorInterface,
	scheduler Scheduler, analyzers StatsProvider, transports TransportCache, version string) *Handler {
	return &Handler{
		configCache: configCache,
		store:       store,
		generator:   generator,
		scheduler:   scheduler,
		analyzers:   analyzers,
		transports:  transports,
		version:     version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	articles, err := h.store.ListArticles(c.Request.Context(), news.ArticleFilter{
		Source: name,
		Status: news.StatusAnalyzed,
		Limit:  sourceConfig.Settings.MaxArticles,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	channel := feed.Channel{
		Name:     name,
		Title:    name,
		Link:     sourceConfig.URL,
		Language: sourceConfig.Language,
	}

	rss, err := h.generator.Run(channel, articles)
	if err != nil {
		slog.Error("RSS generation error", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(articles)))
	c.Header("X-Feed-Name", name)

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Health check failed", "error", err)
		health["status"] = "unhealthy"
		health["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["status"] = "healthy"
	health["sources"] = stats.Sources
	health["articles"] = stats.Articles

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := gin.H{"storage": stats}
	if h.analyzers != nil {
		response["analyzers"] = h.analyzers.Stats()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListSources(c *gin.Context) {
	names := h.configCache.Names()
	sources := make([]sourceInfo, 0, len(names))

	for _, name := range names {
		sourceConfig, err := h.configCache.GetConfig(name)
		if err != nil {
			continue
		}
		sources = append(sources, h.describeSource(c, sourceConfig))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	runs, err := h.store.ListCollectionRuns(c.Request.Context(), name, 10)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":      h.describeSource(c, sourceConfig),
		"recent_runs": toRunResponses(runs),
	})
}

func (h *Handler) APIListRuns(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	runs, err := h.store.ListCollectionRuns(c.Request.Context(), name, parseLimit(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  toRunResponses(runs),
		"total": len(runs),
	})
}

func (h *Handler) APICollectSource(c *gin.Context) {
	name := c.Param("name")

	taskID, err := h.scheduler.Collect(name)
	if err != nil {
		h.triggerError(c, "collect", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Collection task enqueued",
		"task":    gin.H{"id": taskID, "type": tasks.TaskTypeCollectSource, "source": name},
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	sourceConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if h.transports != nil {
		h.transports.Forget(name)
	}

	syncTask := tasks.NewSyncSourceTask(sourceConfig, h.store)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and sync task enqueued",
		"source":  h.describeSource(c, sourceConfig),
		"task":    gin.H{"id": syncTask.ID, "type": syncTask.Type},
	})
}

func (h *Handler) APIListArticles(c *gin.Context) {
	filter := news.ArticleFilter{
		Source:         c.Query("source"),
		Status:         news.ArticleStatus(c.Query("status")),
		MissingContent: c.Query("missing_content") == "true",
		Limit:          parseLimit(c),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since parameter, expected RFC3339"})
			return
		}
		filter.Since = &t
	}

	articles, err := h.store.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]articleResponse, len(articles))
	for i, a := range articles {
		response[i] = toArticleResponse(a, nil)
		response[i].Content = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": response,
		"total":    len(response),
	})
}

func (h *Handler) APIGetArticle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	article, err := h.store.GetArticle(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result, err := h.store.GetProcessingResult(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("Database error", "operation", "get_processing_result", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, toArticleResponse(*article, result))
}

// APIProcess queues a processing pass. With reprocess=true analyzed articles
// are run again, e.g. after the rules changed.
func (h *Handler) APIProcess(c *gin.Context) {
	sourceName := c.Query("source")
	status := news.StatusCollected
	if c.Query("reprocess") == "true" {
		status = news.StatusAnalyzed
	}

	taskID, err := h.scheduler.Process(sourceName, status)
	if err != nil {
		h.triggerError(c, "process", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Processing task enqueued",
		"task":    gin.H{"id": taskID, "type": tasks.TaskTypeProcessArticles, "source": sourceName, "status": status},
	})
}

func (h *Handler) APIListTasks(c *gin.Context) {
	list, err := h.store.ListProcessingTasks(c.Request.Context(), parseLimit(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_tasks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]taskResponse, len(list))
	for i, t := range list {
		response[i] = taskResponse{
			ID:          t.ID,
			Status:      t.Status,
			Total:       t.Total,
			Processed:   t.Processed,
			Failed:      t.Failed,
			Skipped:     t.Skipped,
			Errors:      t.Errors,
			ScheduledAt: t.ScheduledAt,
			StartedAt:   t.StartedAt,
			CompletedAt: t.CompletedAt,
			Duration:    t.Duration.String(),
			MemoryMB:    t.MemoryMB,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": response,
		"total": len(response),
	})
}

func (h *Handler) APIListDuplicates(c *gin.Context) {
	status := news.GroupStatus(c.Query("status"))

	groups, err := h.store.ListDuplicateGroups(c.Request.Context(), status, parseLimit(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_duplicates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]groupResponse, len(groups))
	for i, g := range groups {
		response[i] = toGroupResponse(g)
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": response,
		"total":  len(response),
	})
}

func (h *Handler) APIGetDuplicate(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	articles, err := h.store.GetArticles(c.Request.Context(), group.Members)
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "group", group.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	members := make([]articleResponse, len(articles))
	for i, a := range articles {
		members[i] = toArticleResponse(a, nil)
		members[i].Content = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"group":    toGroupResponse(*group),
		"articles": members,
	})
}

func (h *Handler) APIResolveDuplicate(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	group, ok := h.loadGroup(c)
	if !ok {
		return
	}

	if err := dedup.Resolve(group, req.Method, req.CanonicalID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot resolve group", "details": err.Error()})
		return
	}

	if _, err := h.store.CreateOrUpdateDuplicateGroup(c.Request.Context(), *group); err != nil {
		slog.Error("Database error", "operation", "resolve_duplicate", "group", group.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Duplicate group resolved", "group", group.ID, "method", req.Method, "canonical", group.CanonicalID())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"group":   toGroupResponse(*group),
	})
}

func (h *Handler) APISweepDuplicates(c *gin.Context) {
	taskID, err := h.scheduler.GroupDuplicates()
	if err != nil {
		h.triggerError(c, "group_duplicates", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Duplicate grouping task enqueued",
		"task":    gin.H{"id": taskID, "type": tasks.TaskTypeGroupDuplicates},
	})
}

func (h *Handler) loadGroup(c *gin.Context) (*news.DuplicateGroup, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}

	group, err := h.store.GetDuplicateGroup(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Duplicate group not found"})
		return nil, false
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_duplicate", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	return group, true
}

func (h *Handler) describeSource(c *gin.Context, sourceConfig *source.Config) sourceInfo {
	info := sourceInfo{
		Name:           sourceConfig.Name,
		URL:            sourceConfig.URL,
		Kind:           sourceConfig.Kind,
		Enabled:        sourceConfig.Settings.Enabled,
		Interval:       sourceConfig.Interval().String(),
		MaxArticles:    sourceConfig.Settings.MaxArticles,
		ExtractContent: sourceConfig.Settings.ExtractContent,
	}

	if state, err := h.store.GetSource(c.Request.Context(), sourceConfig.Name); err == nil {
		info.LastCollectedAt = state.LastCollectedAt
		info.NextCollectionAt = state.NextCollectionAt
	}
	return info
}

func (h *Handler) triggerError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, tasks.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
	case errors.Is(err, tasks.ErrAlreadyQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "Task already queued", "details": err.Error()})
	default:
		slog.Error("Error enqueueing task", "operation", operation, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue task", "details": err.Error()})
	}
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id parameter"})
		return 0, false
	}
	return id, true
}

func toArticleResponse(a news.Article, result *news.ProcessingResult) articleResponse {
	return articleResponse{
		ID:             a.ID,
		Title:          a.Title,
		URL:            a.URL,
		Summary:        a.Summary,
		Content:        a.Content,
		Author:         a.Author,
		PublishedAt:    a.PublishedAt,
		CollectedAt:    a.CollectedAt,
		Source:         a.Source,
		Status:         a.Status,
		SentimentScore: a.SentimentScore,
		RelevanceScore: a.RelevanceScore,
		Keywords:       a.Keywords,
		Entities:       a.Entities,
		Result:         result,
	}
}

func toRunResponses(runs []news.RunRecord) []runResponse {
	response := make([]runResponse, len(runs))
	for i, r := range runs {
		response[i] = runResponse{
			ID:          r.ID,
			Source:      r.Source,
			Status:      r.Status,
			Found:       r.Found,
			Collected:   r.Collected,
			Updated:     r.Updated,
			Errors:      r.Errors,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Duration:    r.Duration().String(),
		}
	}
	return response
}

func toGroupResponse(g news.DuplicateGroup) groupResponse {
	return groupResponse{
		ID:                g.ID,
		Members:           g.Members,
		CanonicalID:       g.CanonicalID(),
		TitleSimilarity:   g.TitleSimilarity,
		ContentSimilarity: g.ContentSimilarity,
		URLSimilarity:     g.URLSimilarity,
		Status:            g.Status,
		ResolutionMethod:  g.ResolutionMethod,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}
