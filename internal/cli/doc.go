// Package cli реализует инструмент командной строки Kadra.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Kadra API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для подачи резюме, наблюдения за обработкой
// кандидатов и работы с feedback.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Kadra API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	cand, err := client.GetCandidate(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: kadra candidate audit ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: create, show
//   - candidate: submit, show, reprocess, abort, audit, evaluation
//   - feedback: submit, list, aggregate
//
// Каждая группа создаётся через фабричную функцию (NewCandidateCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
