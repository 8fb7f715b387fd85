package repository

import (
	jsoniter "github.com/json-iterator/go"
)

// Пакет repository - Data Access Layer control plane.
//
// Все репозитории работают поверх database/sql (PostgreSQL, lib/pq)
// и возвращают sentinel-ошибки уровня пакета при отсутствии записей.
//
// JSON-колонки (meta, details, api_error_timestamps) сериализуются
// через json-iterator (drop-in замена encoding/json).
var json = jsoniter.ConfigCompatibleWithStandardLibrary
