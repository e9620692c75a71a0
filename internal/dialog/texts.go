package dialog

import (
	"fmt"
	"strings"

	"github.com/zhukovDV72toru/alice/internal/registry"
)

// User-facing phrases. Kept in one place so the wording of the skill
// can be reviewed without reading the handlers.
const (
	textGreeting = "Здравствуйте! Я помогу записаться на приём к врачу в Тюмени. " +
		"Назовите, пожалуйста, фамилию, имя и отчество пациента."
	textAbout = "Я навык записи к врачу. Назову свободное время приёма и запишу вас в поликлинику."
	textHelp  = "Я умею записывать к врачу. Скажите фамилию, имя и отчество, дату рождения, " +
		"выберите специалиста, поликлинику и удобное время. В любой момент можно сказать " +
		"«назад», чтобы вернуться к предыдущему вопросу, или «заново», чтобы начать сначала."
	textRestarted  = "Хорошо, начнём сначала. Назовите фамилию, имя и отчество пациента."
	textAskName    = "Назовите, пожалуйста, фамилию, имя и отчество пациента."
	textBadName    = "Я не разобрала. Назовите фамилию, имя и отчество, например: Иванов Иван Иванович."
	textAskDOB     = "Назовите дату рождения пациента."
	textBadDOB     = "Я не поняла дату. Скажите, например: двенадцатое марта тысяча девятьсот девяностого года."
	textFutureDOB  = "Эта дата ещё не наступила. Назовите дату рождения пациента."
	textTooYoung   = "Записать могу только пациентов старше двенадцати лет. Назовите другую дату рождения."
	textOldDOB     = "Такого возраста не бывает. Назовите дату рождения ещё раз."
	textAskPhone   = "Я не нашла пациента по этим данным. Назовите номер телефона, указанный в поликлинике."
	textBadPhone   = "Не похоже на номер телефона. Продиктуйте десять цифр, например: девятьсот два, сто двадцать три, сорок пять, шестьдесят семь."
	textAskSNILS   = "По телефону найти не удалось. Назовите номер СНИЛС."
	textBadSNILSLength = "В номере СНИЛС должно быть одиннадцать цифр. Продиктуйте его ещё раз."
	textBadSNILS       = "Контрольное число СНИЛС не сходится. Продиктуйте номер ещё раз."
	textNotFound   = "К сожалению, я не нашла пациента в регистратуре. Проверьте данные в поликлинике и возвращайтесь."
	textAskPost    = "К какому специалисту вас записать?"
	textBadPost    = "Такого специалиста я не знаю. Скажите, например: терапевт или офтальмолог."
	textBadMO      = "Я не поняла, какая поликлиника. Повторите название или адрес."
	textBadMedic   = "Я не нашла такого врача в этой поликлинике. Повторите фамилию."
	textAskWish    = "На какую дату вы хотите записаться?"
	textBadDate    = "Я не поняла дату. Скажите, например: пятнадцатое сентября."
	textAskTime    = "В какое время вам удобно?"
	textBadTime    = "Я не поняла время. Скажите, например: в девять тридцать."
	textNoSlots    = "Свободного времени у этого врача нет на месяц вперёд. Выберите другого врача."
	textChecking   = "Запись отправлена в регистратуру. Скажите «проверить статус», чтобы узнать результат."
	textStillBusy  = "Регистратура ещё обрабатывает запись. Спросите статус чуть позже."
	textWorkFailed = "Не получилось связаться с регистратурой. Попробуйте, пожалуйста, позже."
	textNoBack      = "Отсюда некуда возвращаться. Скажите «заново», чтобы начать сначала."
	textNoMedics    = "В этой поликлинике сейчас нет записи к этому специалисту. Выберите другую поликлинику."
	textSlotExpired = "Выбранное время устарело, его мог занять другой пациент. Давайте выберем заново."
	textSaidBye    = "Хорошо. Возвращайтесь, когда захотите записаться к врачу."
)

var bookingStatusTexts = map[registry.BookingStatus]string{
	registry.BookingTimeBusy:            "Это время уже занято. Давайте выберем другое.",
	registry.BookingVisitTimePassed:     "Это время уже прошло. Давайте выберем другое.",
	registry.BookingOtherSpecialist:     "Пациент уже записан к другому специалисту на это время. Выберите другое время.",
	registry.BookingSameSpecialist:      "Пациент уже записан к этому специалисту.",
	registry.BookingOtherAge:            "Этот врач принимает пациентов другого возраста. Выберите другого врача.",
	registry.BookingVaccinationDone:     "По данным регистратуры вакцинация уже завершена.",
	registry.BookingVaccinationNotDue:   "Срок следующей вакцинации ещё не подошёл.",
	registry.BookingVaccinationMedRefuse: "В карте пациента отмечен медицинский отвод от вакцинации.",
}

func textBookingOutcome(res registry.BookingResult, clinician, date, slotTime string) string {
	if res.Status == registry.BookingSuccess {
		return fmt.Sprintf("Готово! Вы записаны к врачу %s на %s в %s. Номер записи %s.",
			clinician, date, slotTime, res.BookID)
	}
	if msg, ok := bookingStatusTexts[res.Status]; ok {
		return msg
	}
	return "Регистратура отклонила запись. Попробуйте выбрать другое время."
}

// textBookingOutcomeBare reports an outcome when the visit details are
// no longer in the session.
func textBookingOutcomeBare(res registry.BookingResult) string {
	if res.Status == registry.BookingSuccess {
		return fmt.Sprintf("Готово! Запись оформлена. Номер записи %s.", res.BookID)
	}
	if msg, ok := bookingStatusTexts[res.Status]; ok {
		return msg
	}
	return "Регистратура отклонила запись. Попробуйте выбрать другое время."
}

func textIdentityConfirm(id registry.Identity) string {
	return fmt.Sprintf("Проверим: %s %s %s, дата рождения %s. Всё верно?",
		id.LastName, id.FirstName, id.MiddleName, id.BirthDate)
}

func textFacilityList(facilities []registry.Facility, aliases registry.FacilityAliases) string {
	var names []string
	for i, f := range facilities {
		if i == 3 {
			break
		}
		name := aliases.For(f.OID)
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return fmt.Sprintf("Приём ведут: %s. В какую поликлинику вас записать?", strings.Join(names, "; "))
}

func textPostList(names []string) string {
	if len(names) > 7 {
		names = names[:7]
	}
	return fmt.Sprintf("Могу записать к специалистам: %s. К какому вас записать?", strings.Join(names, ", "))
}

func textClinicianList(names []string) string {
	if len(names) > 3 {
		names = names[:3]
	}
	return fmt.Sprintf("В этой поликлинике принимают: %s. К кому вас записать?", strings.Join(names, "; "))
}

func textAmbiguous(options []string) string {
	return fmt.Sprintf("Уточните, пожалуйста: %s?", strings.Join(options, " или "))
}

func textSuggestDate(date string) string {
	return fmt.Sprintf("На эту дату записи нет. Ближайшая свободная — %s. Подходит?", date)
}

func textSuggestTime(slotTime string) string {
	return fmt.Sprintf("Этого времени нет. Ближайшее свободное — %s. Подходит?", slotTime)
}

func textDateList(dates []string) string {
	if len(dates) > 5 {
		dates = dates[:5]
	}
	return fmt.Sprintf("Свободные даты: %s. Какую выбрать?", strings.Join(dates, ", "))
}

func textTimeList(times []string) string {
	if len(times) > 5 {
		times = times[:5]
	}
	return fmt.Sprintf("Свободное время: %s. Какое выбрать?", strings.Join(times, ", "))
}

func textBookingConfirm(clinician, date, slotTime string) string {
	return fmt.Sprintf("Записываю к врачу %s на %s в %s. Подтверждаете?", clinician, date, slotTime)
}
