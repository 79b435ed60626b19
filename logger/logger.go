package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota // 调试信息（最详细）
	INFO                  // 一般信息（正常运行信息）
	WARN                  // 警告信息（需要注意但不影响运行）
	ERROR                 // 错误信息（需要关注的问题）
	FATAL                 // 致命错误（程序无法继续）
)

var (
	globalLevel = INFO
	mu          sync.RWMutex

	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar       *zap.SugaredLogger

	// 文件日志（仅 DEBUG 级别启用）
	logFile     *os.File
	currentDate string
	logDir      = "logs"

	globalLocation = time.Local
)

func init() {
	rebuild(nil)
}

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO // 默认INFO级别
	}
}

// SetLevel 设置全局日志级别，DEBUG 时同时写入按日期命名的日志文件
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()

	globalLevel = level
	atomicLevel.SetLevel(level.zapLevel())

	if level == DEBUG {
		rebuild(openLogFile())
	} else {
		closeLogFile()
		rebuild(nil)
	}
}

// GetLevel 获取全局日志级别
func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return globalLevel
}

// SetLocation 设置日志时间戳使用的时区
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	globalLocation = loc
	var file zapcore.WriteSyncer
	if logFile != nil {
		file = zapcore.AddSync(logFile)
	}
	rebuild(file)
}

// SetOutputDir 设置文件日志目录
func SetOutputDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if dir != "" {
		logDir = dir
	}
}

// rebuild 重新构建 zap logger，调用方必须持有 mu
func rebuild(file zapcore.WriteSyncer) {
	loc := globalLocation
	encCfg := zapcore.EncoderConfig{
		TimeKey:    "T",
		LevelKey:   "L",
		MessageKey: "M",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(loc).Format("2006/01/02 15:04:05"))
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + strings.ToUpper(l.String()) + "]")
		},
		ConsoleSeparator: " ",
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), atomicLevel),
	}
	if file != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), file, atomicLevel))
	}

	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
}

// openLogFile 打开当天的日志文件，失败时只输出到控制台
func openLogFile() zapcore.WriteSyncer {
	today := time.Now().In(globalLocation).Format("2006-01-02")
	if logFile != nil && currentDate == today {
		return zapcore.AddSync(logFile)
	}
	closeLogFile()

	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] 创建日志文件夹失败: %v，将只输出到控制台\n", err)
		return nil
	}

	name := filepath.Join(logDir, fmt.Sprintf("app-leadwatch-%s.log", today))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] 打开日志文件失败: %v，将只输出到控制台\n", err)
		return nil
	}

	logFile = file
	currentDate = today
	return zapcore.AddSync(file)
}

func closeLogFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
		currentDate = ""
	}
}

// needRotate 日期变化时需要切换日志文件，调用方必须持有读锁
func needRotate() bool {
	return globalLevel == DEBUG && logFile != nil &&
		time.Now().In(globalLocation).Format("2006-01-02") != currentDate
}

// Close 刷新并关闭日志（程序退出时调用）
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
	closeLogFile()
	rebuild(nil)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	l, rotate := sugar, needRotate()
	mu.RUnlock()
	if !rotate {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if needRotate() {
		rebuild(openLogFile())
	}
	return sugar
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Info 输出一般信息日志
func Info(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(format string, args ...interface{}) {
	l := current()
	l.Errorf(format, args...)
	_ = l.Sync()
	os.Exit(1)
}

// Fatalf 兼容标准库命名
func Fatalf(format string, args ...interface{}) {
	Fatal(format, args...)
}
