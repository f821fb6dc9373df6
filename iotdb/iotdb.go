// Package iotdb exports geostream observations to Apache IoTDB: one device per sensor stream, a DOUBLE
// "reading" measurement and the JSON payload as TEXT.
package iotdb

import (
	"context"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/iotdb-client-go/client"
	"go.uber.org/zap"

	"envlog2netcdf/datetime"
	"envlog2netcdf/geostream"
	"envlog2netcdf/logging"
)

const (
	DefaultDevicePrefix = "root.envlog"
	DefaultBatchSize    = 3000
	readingMeasurement  = "reading"
	payloadMeasurement  = "payload"
)

// Config is the connection and layout of the export.
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	DevicePrefix string
	BatchSize    int
}

// Session is the part of an IoTDB session the exporter uses.
type Session interface {
	Exec(sql string) error
	Close()
}

type Exporter struct {
	cfg     Config
	logger  *zap.SugaredLogger
	connect func(Config) (Session, error)
}

func NewExporter(cfg Config, logger *zap.SugaredLogger) *Exporter {
	if cfg.DevicePrefix == "" {
		cfg.DevicePrefix = DefaultDevicePrefix
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Exporter{cfg: cfg, logger: logging.OrNop(logger), connect: connectClient}
}

// ExportCSV inserts every row of a geostreams CSV and returns the number of records written.
// batchSize caps the rows per INSERT; zero uses the configured size.
func (e *Exporter) ExportCSV(ctx context.Context, csvPath string, batchSize int) (int, error) {
	observations, err := geostream.ReadCSV(csvPath)
	if err != nil {
		return 0, err
	}
	return e.Export(ctx, observations, batchSize)
}

func (e *Exporter) Export(ctx context.Context, observations []geostream.Observation, batchSize int) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = e.cfg.BatchSize
	}
	statements, err := InsertStatements(e.cfg.DevicePrefix, observations, batchSize)
	if err != nil {
		return 0, err
	}
	session, err := e.connect(e.cfg)
	if err != nil {
		return 0, fmt.Errorf("connect to IoTDB at %s: %w", net.JoinHostPort(e.cfg.Host, e.cfg.Port), err)
	}
	defer session.Close()

	written := 0
	for _, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := session.Exec(stmt.SQL); err != nil {
			return written, fmt.Errorf("insert into %s: %w", stmt.Device, err)
		}
		written += stmt.Rows
		e.logger.Debugf("Inserted %d records into %s", stmt.Rows, stmt.Device)
	}
	return written, nil
}

// Statement is one multi-row INSERT into a single device.
type Statement struct {
	Device string
	Rows   int
	SQL    string
}

type insertRow struct {
	millis  int64
	reading float64
	payload string
}

// InsertStatements groups observations by device, in stream order, and splits every device into
// INSERT statements of at most batch rows. Rows whose reading is not a finite number carry the payload only.
func InsertStatements(prefix string, observations []geostream.Observation, batch int) ([]Statement, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	type group struct {
		device      string
		withReading bool
	}
	rows := make(map[group][]insertRow)
	var order []group
	for _, obs := range observations {
		t, err := datetime.ParseGeostreamTime(obs.Time)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", obs.Stream(), err)
		}
		payload, err := payloadText(obs)
		if err != nil {
			return nil, err
		}
		reading, err := strconv.ParseFloat(obs.Payload[geostream.ValueKey], 64)
		finite := err == nil && !math.IsNaN(reading) && !math.IsInf(reading, 0)
		g := group{device: DeviceName(prefix, obs.Stream()), withReading: finite}
		if _, ok := rows[g]; !ok {
			order = append(order, g)
		}
		rows[g] = append(rows[g], insertRow{millis: t.UnixMilli(), reading: reading, payload: payload})
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].device < order[j].device })

	var statements []Statement
	for _, g := range order {
		all := rows[g]
		for start := 0; start < len(all); start += batch {
			end := start + batch
			if end > len(all) {
				end = len(all)
			}
			statements = append(statements, Statement{
				Device: g.device,
				Rows:   end - start,
				SQL:    insertSQL(g.device, g.withReading, all[start:end]),
			})
		}
	}
	return statements, nil
}

func insertSQL(device string, withReading bool, rows []insertRow) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + device + "(time,")
	if withReading {
		sb.WriteString(readingMeasurement + ",")
	}
	sb.WriteString(payloadMeasurement + ") VALUES ")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(" + strconv.FormatInt(row.millis, 10) + ",")
		if withReading {
			sb.WriteString(strconv.FormatFloat(row.reading, 'g', -1, 64) + ",")
		}
		sb.WriteString(quote(row.payload) + ")")
	}
	return sb.String()
}

func payloadText(obs geostream.Observation) (string, error) {
	rec, err := obs.Record()
	if err != nil {
		return "", err
	}
	return rec[6], nil
}

// quote renders a TEXT literal; embedded single quotes are doubled.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DeviceName builds <prefix>.<stream> with the stream reduced to a legal IoTDB path node.
func DeviceName(prefix, stream string) string {
	return prefix + "." + NodeName(stream)
}

// NodeName drops the characters IoTDB rejects in a path node; brackets become underscores and a
// reserved "time" is renamed.
func NodeName(name string) string {
	if strings.ToLower(name) == "time" {
		name = "time1"
	}
	replacer := strings.NewReplacer("~", "", "!", "", "@", "", "#", "", "$", "", "%", "", "^", "", "&", "", "*", "", "/", "", "?", "", ".", "", ",", "", ":", "", ";", "", "|", "", "\\", "", "=", "", "+", "", ")", "", "}", "", "]", "", "(", "_", "{", "_", "[", "_", "'", "", "\"", "", "-", "_")
	return replacer.Replace(strings.ReplaceAll(name, " ", ""))
}

type clientSession struct {
	session client.Session
}

func (s *clientSession) Exec(sql string) error {
	status, err := s.session.ExecuteNonQueryStatement(sql)
	if err != nil {
		return err
	}
	if status != nil {
		return client.VerifySuccess(status)
	}
	return nil
}

func (s *clientSession) Close() {
	s.session.Close()
}

func connectClient(cfg Config) (Session, error) {
	if err := probe(cfg.Host, cfg.Port, time.Second); err != nil {
		return nil, err
	}
	session := client.NewSession(&client.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		UserName: cfg.User,
		Password: cfg.Password,
	})
	if err := session.Open(false, 0); err != nil {
		return nil, err
	}
	return &clientSession{session: session}, nil
}

// probe fails fast when nothing listens on host:port.
func probe(host, port string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
