package logger

import (
	"io"
	"log"
	"os"
)

var (
	InfoLogger  = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger  = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Init 把所有级别的日志重定向到 out，out 为 nil 时恢复标准输出
func Init(out io.Writer) {
	infoOut, errOut := out, out
	if out == nil {
		infoOut, errOut = os.Stdout, os.Stderr
	}
	InfoLogger.SetOutput(infoOut)
	WarnLogger.SetOutput(infoOut)
	ErrorLogger.SetOutput(errOut)
}

func Infof(format string, v ...interface{}) {
	InfoLogger.Output(2, sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	WarnLogger.Output(2, sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	ErrorLogger.Output(2, sprintf(format, v...))
}

func Fatalf(format string, v ...interface{}) {
	ErrorLogger.Output(2, sprintf(format, v...))
	os.Exit(1)
}
