// Package cli реализует команды администрирования Courier.
//
// CLI работает напрямую с БД (web UI у системы нет):
//
//	create   вставить request в состоянии ready
//	list     список requests с фильтром по состоянию
//	show     одна строка целиком
//	logs     журнал попыток доставки
//	abandon  прекратить доставку (отказывает терминальным строкам)
//	unlock   вернуть застрявшую pending-строку в ready
//	retry    немедленно продвинуть waiting-строку в ready
//
// unlock и abandon — операции оператора; воркер сам никогда
// не трогает чужие блокировки и терминальные состояния.
package cli
