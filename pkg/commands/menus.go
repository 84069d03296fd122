package commands

import "showbot/pkg/bus"

func (r *Router) start(Request) bus.OutboundMessage {
	return bus.OutboundMessage{
		Text: "🌟 Welcome to Science Show Da Nang!\n\n" +
			"✨ Incredible science magic by Victor Valmont\n\n" +
			"Choose an action:",
		Keyboard: bus.Keyboard{
			{{Text: "🎪 Open the web app", WebAppURL: r.webAppURL}},
			{
				{Text: "📋 Book a show", CallbackData: string(ActionBookShow)},
				{Text: "ℹ️ About us", CallbackData: string(ActionAbout)},
			},
		},
	}
}

func (r *Router) help(Request) bus.OutboundMessage {
	return bus.OutboundMessage{
		Text: "📚 Available commands:\n" +
			"/start - Main menu\n" +
			"/shows - Browse all shows\n" +
			"/book - Book a show\n" +
			"/contact - Contact information\n" +
			"/help - This help",
	}
}

func (r *Router) shows(Request) bus.OutboundMessage {
	return bus.OutboundMessage{
		Text: "🎪 *Our shows:*\n\n" +
			"❄️ *Dry Ice Explosion* - mesmerizing smoke effects\n" +
			"🧊 *Liquid Nitrogen Magic* - extreme cold demonstrations\n" +
			"⚡ *Tesla Coil Lightning* - high-voltage electricity\n" +
			"🔥 *Chemical Fire* - spectacular flame effects\n\n" +
			"Press the button below to book!",
		ParseMode: bus.ParseMarkdown,
		Keyboard:  bus.Keyboard{{{Text: "📋 Open the booking form", WebAppURL: r.bookingURL()}}},
	}
}

func (r *Router) book(Request) bus.OutboundMessage {
	return bus.OutboundMessage{
		Text:     "Press the button to book a show:",
		Keyboard: bus.Keyboard{{{Text: "📋 Go to booking", WebAppURL: r.bookingURL()}}},
	}
}

func (r *Router) contact(Request) bus.OutboundMessage {
	return bus.OutboundMessage{
		Text: "📞 *Contact information:*\n\n" +
			"📧 Email: viktorvalmontshow@example.com\n" +
			"📱 Phone: +84 xxx xxx xxx\n" +
			"📍 Address: Da Nang, Vietnam\n\n" +
			"Open daily from 10:00 to 22:00",
		ParseMode: bus.ParseMarkdown,
	}
}

func (r *Router) bookShow(req Request) CallbackReply {
	msg := r.book(req)
	return CallbackReply{Toast: "📋 Opening the booking form...", Message: &msg}
}

func (r *Router) about(Request) CallbackReply {
	return CallbackReply{
		Message: &bus.OutboundMessage{
			Text: "🎪 *Science Show Da Nang*\n\n" +
				"Incredible science magic by Victor Valmont\n\n" +
				"✨ Spectacular chemistry demonstrations\n" +
				"⚡ Interactive effects\n" +
				"🎨 UV/neon staging\n\n" +
				"Perfect for:\n" +
				"🎓 Educational events\n" +
				"🎉 Children's parties\n" +
				"👨‍👩‍👧‍👦 Family celebrations\n" +
				"🎯 Corporate events",
			ParseMode: bus.ParseMarkdown,
			Keyboard:  bus.Keyboard{{{Text: "🌐 More information", WebAppURL: r.webAppURL}}},
		},
	}
}
