package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// Logger is a file logger for trading activities
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
	debug   bool
	console io.Writer
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// Options tunes a Logger
type Options struct {
	Dir   string
	Debug bool
	// Console mirrors WARN and ERROR lines, nil disables mirroring
	Console io.Writer
}

// NewLogger creates a new file logger under logs/<name>_<date>.log
func NewLogger(name string) (*Logger, error) {
	return NewLoggerWithOptions(name, Options{Debug: os.Getenv("SIGNAL_BOT_DEBUG") == "true"})
}

// NewLoggerWithOptions creates a new file logger with explicit options
func NewLoggerWithOptions(name string, opts Options) (*Logger, error) {
	logDir := opts.Dir
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName(name, time.Now()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
		debug:   opts.Debug,
		console: opts.Console,
	}

	l.writeSessionHeader()

	return l, nil
}

func logFileName(name string, t time.Time) string {
	return fmt.Sprintf("%s_%s.log", name, t.Format("2006-01-02"))
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	header := fmt.Sprintf(`
================================================================================
🚀 SIGNAL RELAY SESSION STARTED
================================================================================
Bot: %s
Started: %s
Log File: %s
================================================================================
`, l.name, now.Format("2006-01-02 15:04:05"), logFileName(l.name, now))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	if level == LogLevelDebug && !l.debug {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	logEntry := fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)

	l.logger.Println(logEntry)

	if l.console != nil && (level == LogLevelWarning || level == LogLevelError) {
		fmt.Fprintln(l.console, logEntry)
	}
}

// Debug logs a message only when debug output is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(LogLevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs the per-cycle status line
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogTradeOpened logs the details of a freshly opened trade
func (l *Logger) LogTradeOpened(trade types.ActiveTrade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tp := "-"
	if trade.TakeProfit != nil {
		tp = fmt.Sprintf("$%.4f", *trade.TakeProfit)
	}

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== TRADE OPENED ====================
📌 Asset: %s | Direction: %s
💰 Entry: $%.4f
🛑 Stop Loss: $%.4f
🎯 Take Profit: %s
📦 Quantity: %.6f
==============================================================`,
		time.Now().Format("2006-01-02 15:04:05"), trade.Asset, trade.Direction,
		trade.Entry, trade.StopLoss, tp, trade.Quantity)

	l.logger.Println(tradeLog)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.Warning("%s", fmt.Sprintf(context+": "+message, args...))
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}

	footer := fmt.Sprintf(`
================================================================================
🛑 SIGNAL RELAY SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Print(footer)

	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return filepath.Join(l.logDir, logFileName(l.name, time.Now()))
}

// Nop discards everything. Useful in tests and for components that run
// before the file logger exists.
type Nop struct{}

func (Nop) Debug(string, ...interface{})   {}
func (Nop) Info(string, ...interface{})    {}
func (Nop) Warning(string, ...interface{}) {}
func (Nop) Error(string, ...interface{})   {}
func (Nop) Trade(string, ...interface{})   {}
func (Nop) Status(string, ...interface{})  {}
