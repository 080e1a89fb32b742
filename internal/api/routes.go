package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hypeauction/market-engine/internal/catalog"
	"github.com/hypeauction/market-engine/internal/ingest"
	"github.com/hypeauction/market-engine/internal/recommend"
	"github.com/hypeauction/market-engine/internal/textnorm"
	"github.com/hypeauction/market-engine/pkg/models"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// Catalog is the thin read side over item/enchant/cosmetic name lookups.
// Implementations are expected to be in-memory, read-only after init — the
// fixed catalog lists themselves are treated as an external collaborator.
type Catalog interface {
	SearchItems(q string, limit int) []CatalogItem
	SearchEnchants(q string, limit int) []string
	Dyes(q string) []CatalogItem
	Skins(q string) []CatalogItem
	PetSkins(q string) []CatalogItem
	PetItems(q string) []CatalogItem
}

// CatalogItem is a {key,label} pair returned by the catalog endpoints.
type CatalogItem = catalog.Item

// APIHandler wires the thin HTTP surface over the core engine packages.
type APIHandler struct {
	rec     recommend.Store
	catalog Catalog
	ing     *ingest.Loop
	wsHub   *Hub
}

// SetupRouter builds the full route tree. catalog may be nil, in which case
// the catalog endpoints return empty result sets.
func SetupRouter(rec recommend.Store, catalog Catalog, ing *ingest.Loop, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &APIHandler{rec: rec, catalog: catalog, ing: ing, wsHub: wsHub}

	rl := NewRateLimiter(30, 5)

	pub := r.Group("/api")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/items", h.handleItems)
		pub.GET("/enchants", h.handleEnchants)
		pub.GET("/dyes", h.handleDyes)
		pub.GET("/skins", h.handleSkins)
		pub.GET("/petskins", h.handlePetSkins)
		pub.GET("/petitems", h.handlePetItems)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/ingest/status", h.handleIngestStatus)
	}

	limited := r.Group("/api")
	limited.Use(rl.Middleware())
	{
		limited.GET("/recommend", h.handleRecommend)
		limited.POST("/ingest/run-once", h.handleRunIngestOnce)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *APIHandler) handleItems(c *gin.Context) {
	q := c.Query("q")
	limit := clampLimit(c.DefaultQuery("limit", "20"), 20, 100)
	var items []CatalogItem
	if h.catalog != nil {
		items = h.catalog.SearchItems(q, limit)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *APIHandler) handleEnchants(c *gin.Context) {
	q := c.Query("q")
	limit := clampLimit(c.DefaultQuery("limit", "20"), 20, 100)
	var items []string
	if h.catalog != nil {
		items = h.catalog.SearchEnchants(q, limit)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *APIHandler) handleDyes(c *gin.Context) {
	h.emitCatalog(c, func(q string) []CatalogItem {
		if h.catalog == nil {
			return nil
		}
		return h.catalog.Dyes(q)
	})
}

func (h *APIHandler) handleSkins(c *gin.Context) {
	h.emitCatalog(c, func(q string) []CatalogItem {
		if h.catalog == nil {
			return nil
		}
		return h.catalog.Skins(q)
	})
}

func (h *APIHandler) handlePetSkins(c *gin.Context) {
	h.emitCatalog(c, func(q string) []CatalogItem {
		if h.catalog == nil {
			return nil
		}
		return h.catalog.PetSkins(q)
	})
}

func (h *APIHandler) handlePetItems(c *gin.Context) {
	h.emitCatalog(c, func(q string) []CatalogItem {
		if h.catalog == nil {
			return nil
		}
		return h.catalog.PetItems(q)
	})
}

func (h *APIHandler) emitCatalog(c *gin.Context, fn func(string) []CatalogItem) {
	c.JSON(http.StatusOK, gin.H{"items": fn(c.Query("q"))})
}

// handleRecommend is the core query, GET /api/recommend. Validation errors
// on query parameters are clamped to legal ranges rather than rejected.
func (h *APIHandler) handleRecommend(c *gin.Context) {
	itemKey := textnorm.NormKey(c.Query("item_key"))
	if itemKey == "" {
		c.JSON(http.StatusOK, models.RecommendResult{Note: "pick an item from suggestions"})
		return
	}

	stars10 := clampInt(c.Query("stars10"), 0, 10)

	var enchants []models.EnchantRequest
	if raw := c.Query("enchants"); raw != "" {
		enchants = parseEnchantList(raw)
	}

	filters := models.FilterBundle{
		Tier:    strings.ToLower(c.Query("rarity")),
		Dye:     textnorm.NormKey(c.Query("dye")),
		Skin:    textnorm.NormKey(c.Query("skin")),
		PetSkin: textnorm.NormKey(c.Query("petskin")),
		PetItem: strings.ReplaceAll(textnorm.NormKey(c.Query("petitem")), " ", "_"),
	}
	if raw := c.Query("wi"); raw != "" {
		filters.WitherImpactSet = true
		filters.WitherImpact = raw == "1" || strings.EqualFold(raw, "true")
	}
	if raw := c.Query("petlvl"); raw != "" {
		filters.MinPetLevel = clampInt(raw, 0, 200)
	}

	result, err := recommend.Recommend(c.Request.Context(), h.rec, recommend.Query{
		ItemKey:           itemKey,
		RequestedStars10:  stars10,
		RequestedEnchants: enchants,
		Filters:           filters,
	}, nowMillis())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute recommendation"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) handleIngestStatus(c *gin.Context) {
	if h.ing == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest loop not configured"})
		return
	}
	c.JSON(http.StatusOK, h.ing.Stats())
}

func (h *APIHandler) handleRunIngestOnce(c *gin.Context) {
	if h.ing == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest loop not configured"})
		return
	}
	if err := h.ing.RunOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ing.Stats())
}

func clampLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func clampInt(raw string, lo, hi int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

var romanNumerals = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "VII": 7, "VIII": 8,
	"IX": 9, "X": 10, "XI": 11, "XII": 12, "XIII": 13, "XIV": 14, "XV": 15,
	"XVI": 16, "XVII": 17, "XVIII": 18, "XIX": 19, "XX": 20,
}

// parseEnchantList parses the comma-separated "Name Level" query param,
// where level may be an integer or a Roman numeral I-XX.
func parseEnchantList(raw string) []models.EnchantRequest {
	var out []models.EnchantRequest
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, " ")
		if idx < 0 {
			continue
		}
		name := strings.TrimPrefix(textnorm.NormKey(entry[:idx]), "ultimate ")
		levelTok := strings.ToUpper(strings.TrimSpace(entry[idx+1:]))
		var level int
		if n, err := strconv.Atoi(levelTok); err == nil {
			level = n
		} else if v, ok := romanNumerals[levelTok]; ok {
			level = v
		} else {
			continue
		}
		name = strings.ReplaceAll(name, " ", "_")
		out = append(out, models.EnchantRequest{Name: name, Level: level})
	}
	return out
}
