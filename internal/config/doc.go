// Package config читает настройки процессов из окружения.
//
// Load подгружает .env (если файл есть) через godotenv, не перезаписывая
// уже заданные переменные. Геттеры String/Int/Duration/Bool возвращают
// значение по умолчанию для пустой или невалидной переменной.
package config
