package notify

// slotlog.go — log plano por slot, una línea por snapshot aceptado.
//
// Cada ticker tiene su propio fichero en el directorio de logs, con el
// formato estable de domain.Snapshot.Line más líneas de evento anotadas.
// Los scripts de análisis offline parsean estos ficheros; el formato no se
// cambia sin migrarlos.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/updownbot/internal/domain"
)

// SlotLog implementa ports.SlotLog sobre ficheros planos, uno por ticker.
type SlotLog struct {
	dir string

	mu     sync.Mutex
	ticker string
	f      *os.File
}

// NewSlotLog crea el writer. El directorio se crea si no existe.
func NewSlotLog(dir string) (*SlotLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("notify.NewSlotLog: %w", err)
	}
	return &SlotLog{dir: dir}, nil
}

// Snapshot escribe la línea de tick; rota de fichero al cambiar el ticker.
func (l *SlotLog) Snapshot(snap domain.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotate(snap.Market.Ticker); err != nil {
		slog.Warn("slot log rotate failed", "err", err)
		return
	}
	l.write(snap.Line())
}

// Eventf escribe una línea de evento anotada con timestamp ISO-8601.
func (l *SlotLog) Eventf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		// Aún sin slot activo; el evento va solo al logger estructurado.
		slog.Info("slot event (no active slot)", "event", fmt.Sprintf(format, args...))
		return
	}
	l.write(fmt.Sprintf("[%s] %s",
		time.Now().UTC().Format(time.RFC3339),
		fmt.Sprintf(format, args...),
	))
}

// Close cierra el fichero activo.
func (l *SlotLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	l.ticker = ""
	return err
}

// rotate abre el fichero del ticker si cambió. Append: reanudar un slot tras
// un reinicio continúa el mismo fichero.
func (l *SlotLog) rotate(ticker string) error {
	if ticker == l.ticker && l.f != nil {
		return nil
	}
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}

	path := filepath.Join(l.dir, ticker+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	l.f = f
	l.ticker = ticker
	return nil
}

func (l *SlotLog) write(line string) {
	if _, err := fmt.Fprintln(l.f, line); err != nil {
		slog.Warn("slot log write failed", "err", err)
	}
}

// NopSlotLog descarta todo. Para el modo report y para tests.
type NopSlotLog struct{}

func (NopSlotLog) Snapshot(domain.Snapshot) {}
func (NopSlotLog) Eventf(string, ...any) {}
