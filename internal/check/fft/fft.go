// Пакет fft — итеративное радикс-2 БПФ фиксированной длины.
// Длина задаётся при создании и должна быть степенью двойки.
// Таблица бит-реверсной перестановки и twiddle-факторы всех стадий
// вычисляются один раз в конструкторе, Compute переиспользует их.
package fft

import (
	"fmt"
	"math"
	"math/bits"
)

// Transform — БПФ фиксированной длины N (степень двойки).
// Без внутреннего состояния между вызовами: экземпляр можно
// переиспользовать для любого числа буферов из одной горутины.
type Transform struct {
	n int
	// swapPositions — бит-реверсный индекс для каждой позиции
	swapPositions []int
	// expFactors — twiddle-факторы всех стадий подряд:
	// стадия n=2 даёт 1 фактор, n=4 — 2, ..., n=N — N/2
	expFactors []complex128
}

// New создаёт Transform длины n. Возвращает ошибку, если n
// не является степенью двойки или меньше 2.
func New(n int) (*Transform, error) {
	if n < 2 || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("длина БПФ должна быть степенью двойки, получено %d", n)
	}

	nLog := bits.TrailingZeros(uint(n))

	swap := make([]int, n)
	for i := 1; i < n; i++ {
		swap[i] = bitReverse(i, nLog)
	}

	// Всего факторов: 1 + 2 + 4 + ... + N/2 = N - 1
	factors := make([]complex128, 0, n-1)
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		for k := 0; k < half; k++ {
			term := -2 * math.Pi * float64(k) / float64(size)
			factors = append(factors, complex(math.Cos(term), math.Sin(term)))
		}
	}

	return &Transform{
		n:             n,
		swapPositions: swap,
		expFactors:    factors,
	}, nil
}

// Len возвращает длину преобразования.
func (t *Transform) Len() int {
	return t.n
}

// Compute выполняет in-place преобразование буфера.
// Возвращает ошибку, если длина буфера не совпадает с длиной,
// заданной при создании. Других побочных эффектов нет.
func (t *Transform) Compute(buf []complex128) error {
	if len(buf) != t.n {
		return fmt.Errorf("длина буфера должна совпадать с длиной БПФ (ожидалось %d, получено %d)", t.n, len(buf))
	}

	// Перестановка по бит-реверсным индексам
	for j := 1; j < len(buf); j++ {
		swapPos := t.swapPositions[j]
		// не меняем местами дважды
		if swapPos > j {
			buf[j], buf[swapPos] = buf[swapPos], buf[j]
		}
	}

	// Итеративные стадии бабочек: size = 2, 4, ..., N
	expI := 0
	for size := 2; size <= len(buf); size <<= 1 {
		half := size >> 1
		for k := 0; k < half; k++ {
			expF := t.expFactors[expI]
			expI++
			for even := k; even < len(buf); even += size {
				odd := even + half
				e := buf[even]
				x := expF * buf[odd]
				buf[even] = e + x
				buf[odd] = e - x
			}
		}
	}

	return nil
}

// bitReverse возвращает число n с обращённым порядком numBits младших бит.
func bitReverse(n, numBits int) int {
	res := 0
	for i := 0; i < numBits; i++ {
		res = (res << 1) | (n & 1)
		n >>= 1
	}
	return res
}
