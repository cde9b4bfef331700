package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleHealth returns data about the health of myself.
// output example:
//  {"NumGoroutines":11,"NumCPU":4,"HeapAllocatedMB":3,"SysMemoryMB":12,"Version":"1.0.2+20261001",
//   "ProgLang":"go1.25.0","HostName":"door-1","Uptime":"72h0m0s","ClockEra":0,"Frames":17,"ParityErrors":1}
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		status := app.Status()

		healthData := struct {
			NumGoroutines   int
			NumCPU          int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Time            string
			Uptime          string
			ClockEra        uint32
			Frames          uint64
			ParityErrors    uint64
			Timeouts        uint64
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			NumCPU:          runtime.NumCPU(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
			Uptime:          time.Since(app.started).Truncate(time.Second).String(),
			ClockEra:        status.Era,
			Frames:          status.Decoder.Frames,
			ParityErrors:    status.Decoder.ParityErrors,
			Timeouts:        status.Decoder.Timeouts,
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}
