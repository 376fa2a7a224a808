// Package resume — извлечение текста из документов резюме и файловое
// хранилище документов.
//
// Поддерживаются PDF (unipdf), DOCX и plain text. Извлечение устроено
// консервативно: страница, которую не удалось прочитать, пропускается,
// ошибка возвращается только когда текст не извлечён вовсе.
package resume
