package storage

// holdings.go — ledger durable de posiciones: {settlement id → token → qty}.
//
// Es un único documento JSON compartido con el job de redemption (fuera de
// este proceso). Cada operación lee el archivo entero, muta y reescribe vía
// tmp+rename. No es seguro para escritores multi-proceso: la corrección
// depende de la garantía de instancia única del lockfile.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Holdings implementa ports.HoldingsStore sobre un archivo JSON.
type Holdings struct {
	path string
	mu   sync.Mutex
}

// NewHoldings crea el store sobre la ruta dada. No toca el disco hasta la
// primera operación.
func NewHoldings(path string) *Holdings {
	return &Holdings{path: path}
}

// Load lee el ledger completo. Un archivo inexistente es un ledger vacío.
func (h *Holdings) Load() (map[string]map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.read()
}

// Add incrementa la cantidad acumulada de un token tras un buy confirmado.
func (h *Holdings) Add(settlementID, tokenID string, qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("storage.Add: qty must be positive, got %f", qty)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ledger, err := h.read()
	if err != nil {
		return fmt.Errorf("storage.Add: %w", err)
	}

	tokens, ok := ledger[settlementID]
	if !ok {
		tokens = make(map[string]float64)
		ledger[settlementID] = tokens
	}
	tokens[tokenID] += qty

	if err := h.write(ledger); err != nil {
		return fmt.Errorf("storage.Add: %w", err)
	}
	return nil
}

// ClearSettlement borra la entrada entera de un settlement id. Borrar un id
// ausente no es un error.
func (h *Holdings) ClearSettlement(settlementID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ledger, err := h.read()
	if err != nil {
		return fmt.Errorf("storage.ClearSettlement: %w", err)
	}

	if _, ok := ledger[settlementID]; !ok {
		return nil
	}
	delete(ledger, settlementID)

	if err := h.write(ledger); err != nil {
		return fmt.Errorf("storage.ClearSettlement: %w", err)
	}
	return nil
}

// read carga el documento JSON entero.
func (h *Holdings) read() (map[string]map[string]float64, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]map[string]float64), nil
		}
		return nil, fmt.Errorf("read %q: %w", h.path, err)
	}

	ledger := make(map[string]map[string]float64)
	if len(data) == 0 {
		return ledger, nil
	}
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("parse %q: %w", h.path, err)
	}
	return ledger, nil
}

// write reescribe el documento entero de forma atómica (tmp + rename).
func (h *Holdings) write(ledger map[string]map[string]float64) error {
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %q: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("rename %q: %w", tmp, err)
	}
	return nil
}
