// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	maxAllowedPacket = 16777216
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Database struct {
	Name    string   `toml:"name"`
	User    string   `toml:"user"`
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	Passwd  string   `toml:"passwd"`
	Timeout Duration `toml:"timeout,omitempty"`
}

func (d *Database) Decrypt(decryptedKey string) {
	if d == nil || len(decryptedKey) == 0 {
		return
	}
	if passwd, err := Decrypt(d.Passwd, decryptedKey); err == nil {
		d.Passwd = passwd
	}
}

func (d *Database) MakeConfig() (*mysql.Config, error) {
	if d.Timeout.Duration == 0 {
		d.Timeout.Duration = 30 * time.Second
	}

	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Passwd
	cfg.DBName = d.Name
	cfg.Net = "tcp"
	cfg.Addr = d.Host + ":" + strconv.Itoa(d.Port)
	cfg.Timeout = d.Timeout.Duration
	cfg.ReadTimeout = d.Timeout.Duration
	cfg.WriteTimeout = d.Timeout.Duration
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.MaxAllowedPacket = maxAllowedPacket

	return cfg, nil
}

// OSS configures the S3 compatible bucket repositories live in.
type OSS struct {
	Endpoint        string `toml:"endpoint,omitempty"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Region          string `toml:"region,omitempty"`
	PathStyle       bool   `toml:"path_style,omitempty"`
}

func (o *OSS) Decrypt(decryptedKey string) {
	if o == nil || len(decryptedKey) == 0 {
		return
	}
	if accessKeyID, err := Decrypt(o.AccessKeyID, decryptedKey); err == nil {
		o.AccessKeyID = accessKeyID
	}
	if accessKeySecret, err := Decrypt(o.AccessKeySecret, decryptedKey); err == nil {
		o.AccessKeySecret = accessKeySecret
	}
}

// Redis configures the content cache.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password,omitempty"`
	DB       int    `toml:"db,omitempty"`
}

func (r *Redis) Decrypt(decryptedKey string) {
	if r == nil || len(decryptedKey) == 0 {
		return
	}
	if password, err := Decrypt(r.Password, decryptedKey); err == nil {
		r.Password = password
	}
}

// Cache configures the in-memory decoded-object cache.
type Cache struct {
	NumCounters int64 `toml:"num_counters"`
	MaxCost     int64 `toml:"max_cost"`
	BufferItems int64 `toml:"buffer_items"`
}

const (
	MiByte = 1 << 20

	maxConfigSize = 64 * MiByte
)

func NewExpandReader(file string, expandEnv bool) (io.ReadCloser, error) {
	fd, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if !expandEnv {
		return fd, err
	}
	defer fd.Close() // nolint
	buf, err := io.ReadAll(io.LimitReader(fd, maxConfigSize+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxConfigSize {
		return nil, fmt.Errorf("config file %s too large", file)
	}
	b := strings.NewReader(os.ExpandEnv(string(buf)))
	return io.NopCloser(b), nil
}
