package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pos/internal/events"
	"pos/internal/models"
	"pos/internal/payment"
	"pos/internal/report"
	"pos/internal/store"
)

type Handler struct {
	store     store.Store
	publisher events.Publisher
	upi       payment.UPIConfig
}

type Options struct {
	Publisher events.Publisher
	UPI       payment.UPIConfig
}

func NewHandler(st store.Store, options Options) *Handler {
	publisher := options.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{
		store:     st,
		publisher: publisher,
		upi:       options.UPI,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/orders/", h.handleOrderSubpath)
	mux.HandleFunc("/api/menu", h.handleMenu)
	mux.HandleFunc("/api/tables", h.handleTables)
	mux.HandleFunc("/api/tables/manage", h.handleTableManage)
	mux.HandleFunc("/api/users", h.handleUsers)
	mux.HandleFunc("/api/metrics", h.handleMetrics)
	mux.HandleFunc("/api/reports/summary", h.handleReportSummary)
	mux.HandleFunc("/api/payments/checkout", h.handleCheckout)
	mux.HandleFunc("/api/payments/qr", h.handlePaymentQR)
	mux.HandleFunc("/api/invoices", h.handleInvoices)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type loginResponse struct {
	SessionID string      `json:"session_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.PIN = strings.TrimSpace(req.PIN)
	if req.Name == "" || req.PIN == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name and pin are required")
		return
	}

	session, user, err := h.store.Login(r.Context(), req.Name, req.PIN)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "sessionId",
		Value:    session.SessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: session.SessionID,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	if err := h.store.DeleteSession(r.Context(), session.SessionID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:    "sessionId",
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type orderItemRequest struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}

type submitOrderRequest struct {
	RequestID     string             `json:"request_id"`
	TableNumber   int                `json:"table_number"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Items         []orderItemRequest `json:"items"`
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmitOrder(w, r)
	case http.MethodGet:
		h.handleListOrders(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := requireRole(w, r, models.RoleWaiter, models.RoleAdmin)
	if !ok {
		return
	}

	var req submitOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	if req.TableNumber <= 0 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "table_number must be positive")
		return
	}
	if msg := validateItems(req.Items); msg != "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.OrderItem{
			MenuItemID: item.MenuItemID,
			Name:       strings.TrimSpace(item.Name),
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}

	result, err := h.store.SubmitOrder(r.Context(), store.SubmitOrderInput{
		RequestID:     req.RequestID,
		TableNumber:   req.TableNumber,
		WaiterID:      session.UserID,
		WaiterName:    session.UserName,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         items,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	order, err := h.store.GetOrder(r.Context(), result.OrderID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	eventType := events.TypeOrderUpdated
	responseStatus := http.StatusOK
	if result.Created {
		eventType = events.TypeOrderCreated
		responseStatus = http.StatusCreated
	}
	h.publish(r, events.NewEvent(eventType, order))

	writeJSON(w, responseStatus, order)
}

func validateItems(items []orderItemRequest) string {
	if len(items) == 0 {
		return "items must not be empty"
	}
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return "item name is required"
		}
		if item.UnitPrice < 0 {
			return "unit_price must not be negative"
		}
		if item.Quantity <= 0 {
			return "quantity must be positive"
		}
	}
	return ""
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := sessionFromContext(r.Context()); !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleOrderSubpath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleGetOrder(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		h.handleAdvanceStatus(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := sessionFromContext(r.Context()); !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	order, err := h.store.GetOrder(r.Context(), ref)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
}

var knownStatuses = map[string]bool{
	models.OrderPending:   true,
	models.OrderPreparing: true,
	models.OrderServed:    true,
	models.OrderPaid:      true,
	models.OrderCancelled: true,
}

func (h *Handler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(w, r, models.RoleChef, models.RoleWaiter, models.RoleAdmin); !ok {
		return
	}

	var req statusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Status = strings.TrimSpace(req.Status)
	if !knownStatuses[req.Status] {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	order, err := h.store.AdvanceStatus(r.Context(), ref, req.Status)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}

	h.publish(r, events.NewEvent(events.TypeStatusChanged, order))
	writeJSON(w, http.StatusOK, order)
}

type createMenuItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := sessionFromContext(r.Context()); !ok {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		items, err := h.store.ListMenu(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		var req createMenuItemRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Category = strings.TrimSpace(req.Category)
		if req.Name == "" || req.Price < 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name and a non-negative price are required")
			return
		}
		item, err := h.store.CreateMenuItem(r.Context(), store.CreateMenuItemInput{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Category:    req.Category,
			Price:       req.Price,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	case http.MethodDelete:
		if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
			return
		}
		itemID := strings.TrimSpace(r.URL.Query().Get("id"))
		if itemID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "id is required")
			return
		}
		if err := h.store.DeleteMenuItem(r.Context(), itemID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := sessionFromContext(r.Context()); !ok {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		tables, err := h.store.ListTables(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, tables)
	case http.MethodPut:
		h.handleTableOverride(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type tableOverrideRequest struct {
	TableNumber int    `json:"table_number"`
	Status      string `json:"status"`
}

var knownTableStatuses = map[string]bool{
	models.TableAvailable: true,
	models.TableOccupied:  true,
	models.TableReserved:  true,
}

func (h *Handler) handleTableOverride(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	var req tableOverrideRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if req.TableNumber <= 0 {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "table_number must be positive")
		return
	}
	if !knownTableStatuses[req.Status] {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "unknown table status")
		return
	}

	if err := h.store.OverrideTableStatus(r.Context(), req.TableNumber, req.Status); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createTableRequest struct {
	Name            string `json:"name"`
	TableNumber     int    `json:"table_number"`
	SeatingCapacity int    `json:"seating_capacity"`
}

func (h *Handler) handleTableManage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createTableRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.TableNumber <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name and a positive table_number are required")
			return
		}
		table, err := h.store.CreateTable(r.Context(), store.CreateTableInput{
			Name:            req.Name,
			TableNumber:     req.TableNumber,
			SeatingCapacity: req.SeatingCapacity,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, table)
	case http.MethodDelete:
		number, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("number")))
		if err != nil || number <= 0 {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "number must be a positive integer")
			return
		}
		if err := h.store.DeleteTable(r.Context(), number); err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type createUserRequest struct {
	Name  string `json:"name"`
	PIN   string `json:"pin"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, models.RoleAdmin); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		staff, err := h.store.ListStaff(r.Context())
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, staff)
	case http.MethodPost:
		var req createUserRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.PIN = strings.TrimSpace(req.PIN)
		req.Role = strings.TrimSpace(req.Role)
		if req.Name == "" || req.PIN == "" {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "name and pin are required")
			return
		}
		if req.Role != models.RoleWaiter && req.Role != models.RoleChef && req.Role != models.RoleAdmin {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "role must be waiter, chef, or admin")
			return
		}
		user, err := h.store.CreateUser(r.Context(), store.CreateUserInput{
			Name:  req.Name,
			PIN:   req.PIN,
			Role:  req.Role,
			Email: strings.TrimSpace(req.Email),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	case http.MethodDelete:
		userID := strings.TrimSpace(r.URL.Query().Get("id"))
		if userID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "id is required")
			return
		}
		if err := h.store.DeleteUser(r.Context(), userID); err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestIDFromRequest(r), status, code, msg)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(w, r, models.RoleAdmin, models.RoleSuperAdmin); !ok {
		return
	}

	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, report.Daily(orders, time.Now().UTC()))
}

func (h *Handler) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(w, r, models.RoleAdmin, models.RoleSuperAdmin); !ok {
		return
	}

	scope := report.Scope(strings.TrimSpace(r.URL.Query().Get("scope")))
	if scope == "" {
		scope = report.ScopeDay
	}
	if scope != report.ScopeDay && scope != report.ScopeMonth {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "scope must be day or month")
		return
	}

	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "as_of must be RFC3339 timestamp")
			return
		}
		asOf = parsed
	}

	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(orders, scope, asOf))
}

type orderRefRequest struct {
	OrderRef string `json:"order_ref"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, ok := decodeOrderRef(w, r)
	if !ok {
		return
	}

	pay, err := h.store.CreatePayment(r.Context(), ref)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, pay)
}

type qrResponse struct {
	Payload string  `json:"payload"`
	Amount  float64 `json:"amount"`
}

func (h *Handler) handlePaymentQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, ok := decodeOrderRef(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), ref)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, qrResponse{
		Payload: payment.UPIPayload(h.upi, order),
		Amount:  order.Total,
	})
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, ok := decodeOrderRef(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), ref)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestIDFromRequest(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, payment.BuildInvoice(order, time.Now().UTC()))
}

func decodeOrderRef(w http.ResponseWriter, r *http.Request) (string, bool) {
	if _, ok := sessionFromContext(r.Context()); !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return "", false
	}

	var req orderRefRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return "", false
	}
	req.OrderRef = strings.TrimSpace(req.OrderRef)
	if req.OrderRef == "" {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "order_ref is required")
		return "", false
	}
	return req.OrderRef, true
}

// publish failures never fail the request; the state change is already
// committed.
func (h *Handler) publish(r *http.Request, event events.Event) {
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		log.Printf("publish event type=%s order=%s error=%v", event.Type, event.OrderID, err)
	}
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidItems):
		return http.StatusBadRequest, "invalid_request", "order items are invalid"
	case errors.Is(err, store.ErrTableNotFound):
		return http.StatusNotFound, "table_not_found", "table not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, store.ErrTableConflict):
		return http.StatusForbidden, "table_conflict", "table is occupied by another waiter"
	case errors.Is(err, store.ErrTableActiveOrder):
		return http.StatusConflict, "table_has_active_order", "table has an active order"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "order status does not allow this transition"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid name or pin"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, store.ErrDuplicateTable):
		return http.StatusConflict, "duplicate_table", "table already exists"
	case errors.Is(err, store.ErrDuplicateUser):
		return http.StatusConflict, "duplicate_user", "user already exists"
	case errors.Is(err, store.ErrMenuItemNotFound):
		return http.StatusNotFound, "menu_item_not_found", "menu item not found"
	case errors.Is(err, store.ErrDuplicateMenuItem):
		return http.StatusConflict, "duplicate_menu_item", "menu item already exists"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
