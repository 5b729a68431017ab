// Package seal шифрует чувствительные значения заголовков at-rest.
//
// Значения заголовков вроде Authorization и Cookie не должны лежать
// в БД открытым текстом. Sealer шифрует их ChaCha20-Poly1305
// со случайным nonce; на диске значение имеет вид
//
//	sealed:<base64(nonce || ciphertext)>
//
// Шифрование применяется внутри репозитория при записи и чтении,
// поэтому воркер и CLI всегда видят plaintext. Ключ берётся из
// COURIER_SEAL_KEY (64 hex-символа); без ключа Sealer работает
// как identity и строки хранятся открыто.
package seal
