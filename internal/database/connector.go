package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"moff.io/moff-connector/internal/config"
	"moff.io/moff-connector/pkg/log"
)

var (
	ConnectorPostgres *gorm.DB
)

func Close() {
	if ConnectorPostgres == nil {
		return
	}
	db, err := ConnectorPostgres.DB()
	if err != nil {
		log.Errorf("get pg conn:%v", err)
		return
	}
	if err := db.Close(); err != nil {
		log.Errorf("close pg conn:%v", err)
	}
	ConnectorPostgres = nil
}

func InitConnectorPostgres(conf *config.DBCredential) {
	cli, err := gorm.Open(postgres.Open(conf.Dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: "connector.",
		},
	})
	if err != nil {
		log.Fatalf("connect to pg:%v", err)
	}
	ConnectorPostgres = cli

	db, err := cli.DB()
	if err != nil {
		log.Fatalf("get pg conn:%v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("ping to pg:%v", err)
	}
	log.Info("Connected to connector postgres...")

	err = ConnectorPostgres.AutoMigrate(
		&ActivationRecord{},
	)
	if err != nil {
		log.Fatalf("autoMigrate tables:%v", err)
	}
}
