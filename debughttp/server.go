/*Package debughttp exposes a read-only JSON introspection surface over
the channel registry and the driver bank's protection status, grounded
on the teacher's cmd/dacsrv SetupHTTP: a chi.Router built once and
mounted by the daemon, handlers thin enough to be table-driven.
*/
package debughttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/drivers"
)

// channelView is the JSON shape returned for a single channel;
// unexported driver-model fields never cross this boundary.
type channelView struct {
	ID        uint16 `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Value     int32  `json:"value"`
	Enabled   bool   `json:"enabled"`
	Fault     bool   `json:"fault"`
	Timestamp uint64 `json:"timestamp_ms"`
}

// protectionView mirrors drivers.ProtectionStatus for JSON.
type protectionView struct {
	BatteryVoltageMv int32  `json:"battery_voltage_mv"`
	BoardTempC10     int32  `json:"board_temp_c10"`
	McuTempC10       int32  `json:"mcu_temp_c10"`
	TotalCurrentMa   int32  `json:"total_current_ma"`
	FaultFlags       uint32 `json:"fault_flags"`
}

// RegistryFunc returns the currently live registry; the daemon passes
// a closure over its reload variable so a config swap is visible to
// the next request without this package knowing anything about how
// reloads happen.
type RegistryFunc func() *channel.Registry

// NewRouter builds the debug HTTP surface. reg is called fresh on
// every request so a config reload is reflected immediately; prot is
// read live on every request too.
func NewRouter(reg RegistryFunc, prot *drivers.Protection) chi.Router {
	r := chi.NewRouter()
	r.Get("/channels", listChannels(reg))
	r.Get("/channels/{id}", getChannel(reg))
	r.Get("/status", getStatus(prot))
	return r
}

func listChannels(reg RegistryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry := reg()
		views := make([]channelView, 0, registry.Len())
		registry.ForEachOrdered(func(ch *channel.Channel) {
			views = append(views, toView(ch))
		})
		writeJSON(w, views)
	}
}

func getChannel(reg RegistryFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := strconv.ParseUint(idStr, 10, 16)
		if err != nil {
			http.Error(w, "invalid channel id", http.StatusBadRequest)
			return
		}
		ch, ok := reg().Get(uint16(id))
		if !ok {
			http.Error(w, "no such channel", http.StatusNotFound)
			return
		}
		writeJSON(w, toView(&ch))
	}
}

func getStatus(prot *drivers.Protection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := prot.Status()
		writeJSON(w, protectionView{
			BatteryVoltageMv: st.BatteryVoltageMv,
			BoardTempC10:     st.BoardTempC,
			McuTempC10:       st.McuTempC,
			TotalCurrentMa:   st.TotalCurrentMa,
			FaultFlags:       st.FaultFlags,
		})
	}
}

func toView(ch *channel.Channel) channelView {
	return channelView{
		ID:        ch.ID,
		Kind:      ch.Kind.String(),
		Name:      ch.Name,
		Value:     ch.Value,
		Enabled:   ch.Flags.Has(channel.FlagEnabled),
		Fault:     ch.Flags.Has(channel.FlagFault),
		Timestamp: ch.TimestampMs,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
