package stub

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/model"
	"go.uber.org/zap"
)

type userRequest struct {
	Command  string  `json:"command"`
	ID       *int    `json:"id"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type productRequest struct {
	Command     string   `json:"command"`
	ID          *int     `json:"id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
}

type orderRequest struct {
	Command   string `json:"command"`
	ID        int    `json:"id"`
	ProductID *int   `json:"product_id"`
	UserID    *int   `json:"user_id"`
	Quantity  *int   `json:"quantity"`
}

// Handler serves one stub service. Service zero serves only /shutdown, which
// is how the inter-service router is stood up.
type Handler struct {
	store      *Store
	service    model.Service
	onShutdown func()
}

func NewHandler(store *Store, service model.Service, onShutdown func()) *Handler {
	return &Handler{store: store, service: service, onShutdown: onShutdown}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/shutdown", h.Shutdown)

	switch h.service {
	case model.User:
		r.POST("/user", h.User)
		r.GET("/user/:id", h.GetUser)
	case model.Product:
		r.POST("/product", h.Product)
		r.GET("/product/:id", h.GetProduct)
	case model.Order:
		r.POST("/order", h.PlaceOrder)
		r.GET("/order/:id", h.GetOrder)
	}
}

func (h *Handler) Shutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "shutting down"})
	if h.onShutdown != nil {
		go h.onShutdown()
	}
}

func (h *Handler) User(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == nil {
		badRequest(c, "invalid request")
		return
	}

	switch req.Command {
	case "create":
		if req.Username == nil || req.Email == nil || req.Password == nil {
			badRequest(c, "missing required fields")
			return
		}
		u := model.UserRecord{ID: *req.ID, Username: *req.Username, Email: *req.Email, Password: *req.Password}
		if err := h.store.CreateUser(u); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	case "update":
		u, err := h.store.UpdateUser(*req.ID, func(u *model.UserRecord) {
			setString(&u.Username, req.Username)
			setString(&u.Email, req.Email)
			setString(&u.Password, req.Password)
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	case "delete":
		u, err := h.store.DeleteUser(*req.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	default:
		badRequest(c, "unknown command")
	}
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.store.GetUser(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) Product(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == nil {
		badRequest(c, "invalid request")
		return
	}

	switch req.Command {
	case "create":
		if req.Name == nil || req.Price == nil || req.Quantity == nil || *req.Price < 0 || *req.Quantity < 0 {
			badRequest(c, "missing required fields")
			return
		}
		p := model.ProductRecord{ID: *req.ID, Name: *req.Name, Price: *req.Price, Quantity: *req.Quantity}
		setString(&p.Description, req.Description)
		if err := h.store.CreateProduct(p); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	case "update":
		p, err := h.store.UpdateProduct(*req.ID, func(p *model.ProductRecord) {
			setString(&p.Name, req.Name)
			setString(&p.Description, req.Description)
			if req.Price != nil {
				p.Price = *req.Price
			}
			if req.Quantity != nil {
				p.Quantity = *req.Quantity
			}
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	case "delete":
		p, err := h.store.DeleteProduct(*req.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	default:
		badRequest(c, "unknown command")
	}
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.store.GetProduct(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Command != "place order" || req.ProductID == nil || req.UserID == nil || req.Quantity == nil || *req.Quantity <= 0 {
		badRequest(c, "invalid request")
		return
	}

	o, err := h.store.PlaceOrder(model.OrderRecord{
		ID:        req.ID,
		ProductID: *req.ProductID,
		UserID:    *req.UserID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.store.GetOrder(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrExists), errors.Is(err, ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromContext(c.Request.Context()).Error("stub request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
