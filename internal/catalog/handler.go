package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes mounts the movie routes on movies and the genre routes on genres.
func (h *Handler) RegisterRoutes(movies, genres *gin.RouterGroup) {
	movies.GET("", h.list)        // GET /movies
	movies.GET("/:id", h.getByID) // GET /movies/:id

	genres.GET("", h.listGenres)             // GET /genres
	genres.GET("/:id/movies", h.genreMovies) // GET /genres/:id/movies
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:       c.Query("q"),
		Genre:   c.Query("genre"),
		GenreID: int64(parseInt(c.Query("genre_id"), 0)),
		Year:    parseInt(c.Query("year"), 0),
		Limit:   parseInt(c.Query("limit"), 20),
		Offset:  parseInt(c.Query("offset"), 0),
	}
	h.respondList(c, q)
}

func (h *Handler) genreMovies(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid genre id"})
		return
	}
	g, err := h.Repo.GetGenre(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get genre failed"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "genre not found"})
		return
	}

	h.respondList(c, ListQuery{
		GenreID: id,
		Limit:   parseInt(c.Query("limit"), 20),
		Offset:  parseInt(c.Query("offset"), 0),
	})
}

func (h *Handler) respondList(c *gin.Context, q ListQuery) {
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	m, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) listGenres(c *gin.Context) {
	genres, err := h.Repo.CountByGenre(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list genres failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": genres})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
