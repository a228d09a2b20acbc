package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Catalog Catalog
	Cors    Cors
	Rate    Rate
	Uploads Uploads
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:4000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:marketplace"`
	DisableTLS bool   `conf:"default:true"`
}

// Catalog points at the external product document store. The service
// only ever reads from it.
type Catalog struct {
	URI            string        `conf:"default:mongodb://localhost:27017"`
	Database       string        `conf:"default:marketplace"`
	ConnectTimeout time.Duration `conf:"default:5s"`
	QueryTimeout   time.Duration `conf:"default:3s"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type Rate struct {
	Burst      int     `conf:"default:10"`
	LimitRPS   float64 `conf:"default:5"`
	ExpiryMins int     `conf:"default:10"`
}

type Uploads struct {
	Dir string `conf:"default:uploads"`
}
