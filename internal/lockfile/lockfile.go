package lockfile

// lockfile.go — garantía de instancia única por archivo de lock.
//
// El lock contiene el PID del proceso propietario. Si al adquirir existe un
// lock que apunta a un proceso vivo, se le envía SIGTERM y se reclama el lock:
// el sistema prefiere disponibilidad (siempre un trader fresco corriendo) a
// fairness. El único caso fatal es no poder crear el lock en absoluto.

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Lock es un lock de proceso adquirido.
type Lock struct {
	path string
	pid  int
}

// Acquire escribe el PID propio en path, desalojando antes al propietario
// anterior si sigue vivo. Devuelve error solo si el lock no puede crearse
// (filesystem no disponible); el caller debe salir con status != 0.
func Acquire(path string) (*Lock, error) {
	if prev, ok := readPID(path); ok && prev != os.Getpid() {
		evict(prev)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("lockfile.Acquire: write %q: %w", path, err)
	}

	slog.Info("process lock acquired", "path", path, "pid", pid)
	return &Lock{path: path, pid: pid}, nil
}

// Release elimina el lock incondicionalmente.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile: release failed", "path", l.path, "err", err)
		return
	}
	slog.Info("process lock released", "path", l.path)
}

// readPID lee el PID del lock existente. ok=false si no hay lock o no parsea.
func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// evict manda SIGTERM al propietario anterior si sigue vivo. Best-effort:
// fallar al señalizar no es fatal.
func evict(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	// Señal 0: comprobar si el proceso existe sin afectarlo.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		slog.Debug("lockfile: previous owner already gone", "pid", pid)
		return
	}

	slog.Warn("lockfile: evicting previous instance", "pid", pid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		slog.Warn("lockfile: could not signal previous instance", "pid", pid, "err", err)
		return
	}

	// Margen corto para que el anterior libere recursos antes de reclamar.
	time.Sleep(200 * time.Millisecond)
}
