package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/rackledger/internal/server"
	"github.com/HerbHall/rackledger/pkg/models"
)

func searchTerm(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		server.BadRequest(w, "query parameter q is required", r.URL.Path)
		return "", false
	}
	return q, true
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	term, ok := searchTerm(w, r)
	if !ok {
		return
	}
	params, ok := parseParams(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := m.Search(r.Context(), term, params, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeList(w, res, params)
}

func (h *Handler) handleQuickSearch(w http.ResponseWriter, r *http.Request) {
	term, ok := searchTerm(w, r)
	if !ok {
		return
	}
	m, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	counts, err := m.QuickSearch(r.Context(), term, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// exportedObject is the flattened form of an object in JSON and YAML exports.
type exportedObject struct {
	PublicID     int            `json:"public_id" yaml:"public_id"`
	TypeID       int            `json:"type_id" yaml:"type_id"`
	Active       bool           `json:"active" yaml:"active"`
	Version      string         `json:"version" yaml:"version"`
	CreationTime time.Time      `json:"creation_time" yaml:"creation_time"`
	Fields       map[string]any `json:"fields" yaml:"fields"`
}

func (h *Handler) handleExportObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typeID, err := strconv.Atoi(q.Get("type_id"))
	if err != nil {
		server.BadRequest(w, fmt.Sprintf("invalid type_id %q", q.Get("type_id")), r.URL.Path)
		return
	}
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML && format != FormatCSV {
		server.BadRequest(w, fmt.Sprintf("unsupported format %q", format), r.URL.Path)
		return
	}

	types, err := h.provider.Types(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	typ, err := types.Get(r.Context(), typeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	objects, err := h.provider.Objects(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	objs, err := objects.ByType(r.Context(), typeID, requester(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s.%s", typ.Name, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		cw := csv.NewWriter(w)
		_ = cw.Write(csvHeaders(typ))
		for i := range objs {
			_ = cw.Write(objectToCSVRow(typ, &objs[i]))
		}
		cw.Flush()
	case FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
		enc := yaml.NewEncoder(w)
		_ = enc.Encode(exportObjects(objs))
		_ = enc.Close()
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(exportObjects(objs))
	}
}

func exportObjects(objs []models.Object) []exportedObject {
	out := make([]exportedObject, 0, len(objs))
	for _, o := range objs {
		fields := make(map[string]any, len(o.Fields))
		for _, f := range o.Fields {
			fields[f.Name] = exportValue(f.Value)
		}
		out = append(out, exportedObject{
			PublicID:     o.PublicID,
			TypeID:       o.TypeID,
			Active:       o.Active,
			Version:      o.Version,
			CreationTime: o.CreationTime,
			Fields:       fields,
		})
	}
	return out
}

// exportValue turns stored BSON scalars into plain Go values.
func exportValue(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = exportValue(t[i])
		}
		return out
	}
	return v
}

// csvHeaders lists the fixed columns followed by the type's fields in
// definition order.
func csvHeaders(typ *models.Type) []string {
	headers := []string{"public_id", "active", "version", "creation_time"}
	for _, f := range typ.Fields {
		headers = append(headers, f.Name)
	}
	return headers
}

// objectToCSVRow converts an object to a row matching csvHeaders.
func objectToCSVRow(typ *models.Type, o *models.Object) []string {
	row := []string{
		strconv.Itoa(o.PublicID),
		strconv.FormatBool(o.Active),
		o.Version,
		o.CreationTime.UTC().Format(time.RFC3339),
	}
	for _, f := range typ.Fields {
		v, _ := o.Value(f.Name)
		row = append(row, csvValue(v))
	}
	return row
}

func csvValue(v any) string {
	switch t := exportValue(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(t))
		for i := range t {
			parts[i] = csvValue(t[i])
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(t)
	}
}
