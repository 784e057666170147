// Package monitoring turns a flash driver into an HTTP server that reports
// its state and lets an operator run control commands.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/i2cflash/flash"
	"github.com/sarchlab/i2cflash/idgen"
	"github.com/sarchlab/i2cflash/tracing"
)

var taskKinds = []string{"write", "read", "erase"}

// Monitor can turn a driver into a server and allows external monitoring and
// controlling of the driver.
type Monitor struct {
	driver          *flash.Driver
	portNumber      int
	profileDuration time.Duration
	ids             idgen.Generator

	latency  map[string]*tracing.AverageTimeTracer
	busyTime *tracing.BusyTimeTracer

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
		ids:             idgen.New(),
		latency:         make(map[string]*tracing.AverageTimeTracer),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long the CPU is sampled for /api/profile.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterDriver registers the driver to be monitored. It attaches the
// timing tracers to the driver and the erase progress hook to its engine.
func (m *Monitor) RegisterDriver(d *flash.Driver) {
	m.driver = d

	clock := tracing.WallClock{}

	for _, kind := range taskKinds {
		t := tracing.NewAverageTimeTracer(clock, tracing.KindIs(kind))
		m.latency[kind] = t
		tracing.CollectTrace(d, t)
	}

	m.busyTime = tracing.NewBusyTimeTracer(clock, nil)
	tracing.CollectTrace(d, m.busyTime)

	d.Engine().AcceptHook(&eraseProgressHook{
		monitor: m,
		pages:   d.Geometry().PageCount,
	})
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", m.status).Methods(http.MethodGet)
	r.HandleFunc("/api/driver", m.driverDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/timing", m.timing).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.HandleFunc("/api/ioctl/{code:[0-9]+}", m.ioctl).Methods(http.MethodPost)

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring driver with %s\n", url)

	router := m.Router()

	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	return url
}

type statusRsp struct {
	Status  string `json:"status"`
	Pointer int    `json:"pointer"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	rsp := statusRsp{
		Status:  m.driver.Status().String(),
		Pointer: m.driver.Pointer(),
	}

	writeJSON(w, rsp)
}

func (m *Monitor) driverDetails(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.driver.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type kindTimingRsp struct {
	Count          uint64 `json:"count"`
	AverageLatency string `json:"average_latency"`
}

type timingRsp struct {
	BusyTime string                   `json:"busy_time"`
	Kinds    map[string]kindTimingRsp `json:"kinds"`
}

func (m *Monitor) timing(w http.ResponseWriter, _ *http.Request) {
	rsp := timingRsp{
		BusyTime: m.busyTime.BusyTime().String(),
		Kinds:    make(map[string]kindTimingRsp),
	}

	for kind, t := range m.latency {
		rsp.Kinds[kind] = kindTimingRsp{
			Count:          t.TotalCount(),
			AverageLatency: t.AverageTime().String(),
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.rsp())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

type ioctlRsp struct {
	Command string `json:"command"`
	Result  int    `json:"result"`
	Error   string `json:"error,omitempty"`
}

func (m *Monitor) ioctl(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	arg := 0
	if argStr := r.URL.Query().Get("arg"); argStr != "" {
		arg, err = strconv.Atoi(argStr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	cmd := flash.Command(code)
	result, err := m.driver.Ioctl(r.Context(), cmd, arg)

	rsp := ioctlRsp{Command: cmd.String(), Result: result}
	if err != nil {
		rsp.Error = err.Error()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ioctlErrorStatus(err))
		dieOnErr(json.NewEncoder(w).Encode(rsp))

		return
	}

	writeJSON(w, rsp)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
