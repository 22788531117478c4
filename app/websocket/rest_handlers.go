package websocket

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"StockLedger/app/models"
	"StockLedger/app/services"
)

// RESTHandlers exposes read-only HTTP endpoints for dashboards. All writes
// happen through the service layer, never through HTTP.
type RESTHandlers struct {
	products     *services.ProductService
	ledger       *services.LedgerService
	reservations *services.ReservationService
	sales        *services.SalesService
	reorder      *services.ReorderService
	reports      *services.ReportsService

	lowStockThreshold int
}

// NewRESTHandlers creates the REST handler set
func NewRESTHandlers(
	products *services.ProductService,
	ledger *services.LedgerService,
	reservations *services.ReservationService,
	sales *services.SalesService,
	reorder *services.ReorderService,
	reports *services.ReportsService,
	lowStockThreshold int,
) *RESTHandlers {
	return &RESTHandlers{
		products:          products,
		ledger:            ledger,
		reservations:      reservations,
		sales:             sales,
		reorder:           reorder,
		reports:           reports,
		lowStockThreshold: lowStockThreshold,
	}
}

// prepareRead applies CORS headers and rejects non-GET methods.
// Returns false when the request has already been answered.
func prepareRead(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if services.IsNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// parseTimeRange reads optional from/to query params (RFC 3339 or YYYY-MM-DD).
func parseTimeRange(r *http.Request) (time.Time, time.Time) {
	parse := func(s string) time.Time {
		if s == "" {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
		return time.Time{}
	}
	return parse(r.URL.Query().Get("from")), parse(r.URL.Query().Get("to"))
}

// HandleGetProducts returns the active catalog, optionally filtered by search
func (h *RESTHandlers) HandleGetProducts(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	var (
		products []models.Product
		err      error
	)
	if q := r.URL.Query().Get("search"); q != "" {
		products, err = h.products.SearchProducts(q)
	} else {
		products, err = h.products.GetAllProducts()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, products)
}

// HandleGetLowStock returns products at or below the low stock threshold
func (h *RESTHandlers) HandleGetLowStock(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	threshold := h.lowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			threshold = n
		}
	}

	products, err := h.products.GetLowStockProducts(threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, products)
}

// HandleGetInventorySummary returns aggregate counts and total stock value
func (h *RESTHandlers) HandleGetInventorySummary(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	summary, err := h.products.GetInventorySummary(h.lowStockThreshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, summary)
}

// HandleQueryLedger returns ledger entries, newest first. Supports
// product_id, type, from, to, and search query params.
func (h *RESTHandlers) HandleQueryLedger(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	filter := services.LedgerFilter{
		Type:   models.LedgerEntryType(r.URL.Query().Get("type")),
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			filter.ProductID = uint(id)
		}
	}
	filter.From, filter.To = parseTimeRange(r)

	entries, err := h.ledger.Query(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}

// HandleGetReservations returns reservations, optionally filtered by status
func (h *RESTHandlers) HandleGetReservations(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	status := models.ReservationStatus(r.URL.Query().Get("status"))
	reservations, err := h.reservations.GetReservations(status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, reservations)
}

// HandleGetSales returns sale entries within the requested range
func (h *RESTHandlers) HandleGetSales(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	from, to := parseTimeRange(r)
	sales, err := h.sales.GetSales(from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sales)
}

// HandleGetDailySales returns per-day sale aggregates within the range
func (h *RESTHandlers) HandleGetDailySales(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	from, to := parseTimeRange(r)
	rows, err := h.reports.GetDailySales(from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

// draftResponse pairs the working order lines with their running total
type draftResponse struct {
	Items []models.ReorderItem `json:"items"`
	Total string               `json:"total"`
}

// HandleGetDraft returns the current reorder draft and its total
func (h *RESTHandlers) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	items, total, err := h.reorder.GetDraft()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, draftResponse{Items: items, Total: total.String()})
}

// HandleGetSnapshots returns saved reorder snapshots, or one snapshot with
// its lines when ?id= is given.
func (h *RESTHandlers) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	if !prepareRead(w, r) {
		return
	}

	if v := r.URL.Query().Get("id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			http.Error(w, "invalid snapshot id", http.StatusBadRequest)
			return
		}
		snapshot, err := h.reorder.GetSnapshot(uint(id))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, snapshot)
		return
	}

	snapshots, err := h.reorder.GetSnapshots()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snapshots)
}
