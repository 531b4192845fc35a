package functions

import "fmt"

// Tool names referenced outside the catalog.
const (
	FindNearbyPlaces = "find_nearby_places"
)

type routeArgs struct {
	Origin      string `json:"origin" jsonschema_description:"The starting point of the journey."`
	Destination string `json:"destination" jsonschema_description:"The final destination."`
}

type queryArgs struct {
	Query string `json:"query" jsonschema_description:"The user's question in their own words."`
}

type amenityArgs struct {
	Amenity  string `json:"amenity" jsonschema_description:"The type of amenity to find, e.g. restroom or seating."`
	Location string `json:"location" jsonschema_description:"The stop or station to search at, e.g. Central Station."`
}

type placeArgs struct {
	PlaceType string `json:"place_type" jsonschema_description:"The type of place to search for, e.g. hospital, restaurant or pharmacy."`
}

type locationArgs struct {
	Location string `json:"location" jsonschema_description:"The location to get the weather for, e.g. Central Station or downtown."`
}

type topicArgs struct {
	Topic string `json:"topic" jsonschema_description:"The topic the user is asking about, e.g. safety, comfort, health or feeling dizzy."`
}

type foodArgs struct {
	Food string `json:"food" jsonschema_description:"The food item to check, e.g. sushi, soft cheese or coffee."`
}

type preferencesArgs struct {
	Preferences string `json:"preferences" jsonschema_description:"Preferences or restrictions, e.g. vegetarian, high protein or classic names."`
}

type exerciseArgs struct {
	Trimester string `json:"trimester" jsonschema_description:"Which trimester: first trimester, second trimester or third trimester."`
	Query     string `json:"query" jsonschema_description:"The exercise question, e.g. safe workouts, yoga poses or can I run?"`
}

type sleepArgs struct {
	Issue string `json:"issue" jsonschema_description:"The sleep problem, e.g. can't get comfortable, insomnia or frequent urination."`
}

type weekArgs struct {
	Week int `json:"week" jsonschema:"minimum=1,maximum=42" jsonschema_description:"The pregnancy week number (1-42)."`
}

type autoCallArgs struct {
	AutoCall string `json:"autoCall,omitempty" jsonschema:"enum=partner,enum=doctor,enum=emergency,enum=family" jsonschema_description:"Optional contact to call right away. Leave empty to just show contacts."`
}

type contactArgs struct {
	ContactType string `json:"contactType" jsonschema:"enum=partner,enum=doctor,enum=emergency,enum=family" jsonschema_description:"partner for spouse or partner; doctor for OB/GYN; emergency for 911 only; family for a family member."`
}

type noArgs struct{}

func buildCatalog() []Tool {
	return []Tool{
		// Commute
		external("get_transport_route",
			"Get a public transport route from an origin to a destination, focusing on comfort for a pregnant person.",
			func(a routeArgs) string {
				return fmt.Sprintf("Plan a comfortable public transport route from %s to %s for a pregnant commuter. Prefer step-free stations, fewer changes and seating.", a.Origin, a.Destination)
			}),
		external("get_realtime_updates",
			"Get real-time updates, such as delays or schedule changes, for a specific transport line or route.",
			func(a queryArgs) string {
				return fmt.Sprintf("Give a short status update for this transport question: %s", a.Query)
			}),
		external("find_amenity",
			"Find amenities like restrooms or seating areas at a specific public transport stop or station.",
			func(a amenityArgs) string {
				return fmt.Sprintf("Where can a pregnant commuter find %s at %s? Be brief and practical.", a.Amenity, a.Location)
			}),
		external(FindNearbyPlaces,
			"Find nearby facilities like hospitals, restaurants, or pharmacies. Uses the user's current location automatically, so never ask where they are.",
			func(a placeArgs) string {
				return fmt.Sprintf("Find %s near my current location. List the top 5 closest ones with why they suit pregnant women.", a.PlaceType)
			}),
		external("get_weather",
			"Gets the current weather forecast for a specific location or area.",
			func(a locationArgs) string {
				return fmt.Sprintf("Summarize today's weather for %s in two sentences, with one comfort tip for a pregnant commuter.", a.Location)
			}),
		external("get_travel_card_info",
			"Provides information about public transport travel cards, including their benefits and how to purchase them.",
			func(a queryArgs) string {
				return fmt.Sprintf("Answer this question about public transport travel cards and pregnancy concessions: %s", a.Query)
			}),

		// Health
		external("get_pregnancy_commute_advice",
			"Provides safety, comfort, or health tips for pregnant commuters.",
			func(a topicArgs) string {
				return fmt.Sprintf("Give three short commuting tips for a pregnant person about: %s", a.Topic)
			}),
		external("get_pregnancy_medical_info",
			"Provides general, non-diagnostic information about pregnancy-related medical topics. Always advises users to consult a doctor.",
			func(a queryArgs) string {
				return fmt.Sprintf("Give general, non-diagnostic information about: %s. End by recommending they consult their doctor or midwife.", a.Query)
			}),
		external("get_general_pregnancy_info",
			"Provides helpful, non-medical information and advice on general pregnancy topics such as nutrition, exercise, and well-being.",
			func(a queryArgs) string {
				return fmt.Sprintf("Answer this general pregnancy question warmly and briefly: %s", a.Query)
			}),

		// Nutrition
		external("check_food_safety",
			"Check if a specific food is safe to eat during pregnancy. Use this when the user asks \"Can I eat [food]?\"",
			func(a foodArgs) string {
				return fmt.Sprintf("Is %s safe to eat during pregnancy? Answer yes, no or with care, then explain in two sentences.", a.Food)
			}),
		external("get_meal_plan",
			"Generate a nutritious meal plan for pregnancy based on preferences or dietary needs.",
			func(a preferencesArgs) string {
				return fmt.Sprintf("Suggest a one-day pregnancy meal plan (breakfast, lunch, dinner, two snacks) for: %s", a.Preferences)
			}),
		external("get_nutrition_advice",
			"Get nutrition advice for pregnancy-related questions about vitamins, supplements, or dietary concerns.",
			func(a queryArgs) string {
				return fmt.Sprintf("Answer this pregnancy nutrition question: %s", a.Query)
			}),

		// Baby preparation
		external("get_hospital_bag_checklist",
			"Provide a comprehensive hospital bag checklist for labor and delivery.",
			func(noArgs) string {
				return "List the essentials for a hospital bag for labor and delivery, grouped for mum, baby and partner."
			}),
		external("get_baby_name_suggestions",
			"Suggest baby names based on preferences like style, origin, or meaning.",
			func(a preferencesArgs) string {
				return fmt.Sprintf("Suggest eight baby names matching: %s. Give one-line meanings.", a.Preferences)
			}),
		external("get_nursery_advice",
			"Provide advice on nursery planning, setup, essentials, or safety.",
			func(a queryArgs) string {
				return fmt.Sprintf("Give practical nursery advice about: %s", a.Query)
			}),

		// Wellness
		external("get_exercise_advice",
			"Provide safe exercise recommendations for pregnancy based on trimester and fitness level.",
			func(a exerciseArgs) string {
				return fmt.Sprintf("For someone in their %s, answer: %s. Mention warning signs to stop.", a.Trimester, a.Query)
			}),
		external("get_sleep_advice",
			"Provide tips for better sleep during pregnancy based on specific sleep issues.",
			func(a sleepArgs) string {
				return fmt.Sprintf("Give four tips for better sleep during pregnancy for this issue: %s", a.Issue)
			}),
		external("get_week_by_week_info",
			"Get detailed information about a specific week of pregnancy including baby development and mom's changes.",
			func(a weekArgs) string {
				return fmt.Sprintf("Describe week %d of pregnancy: baby's size and development, and common changes for mum.", a.Week)
			}),

		// UI
		uiTool[noArgs]("start_breathing_exercise",
			"Initiates a guided breathing exercise UI for the user to help them relax or calm down.",
			BeginBreathing),
		uiTool[noArgs]("request_seat_aid",
			"Displays a full-screen message on the user's device to help them request a seat from other passengers.",
			ShowSeatCard),
		uiTool[noArgs]("show_route_map",
			"Displays a static map of the current transport route on the screen. Call this if the user asks to see the map.",
			ShowRouteMap),
		uiTool[noArgs]("show_live_map",
			"Display an interactive map showing nearby places. Use after calling find_nearby_places to visualize the results.",
			ShowLiveMap),
		uiTool[autoCallArgs]("show_emergency_contacts",
			"Display the emergency contacts screen. Use when the user needs to call someone urgently.",
			ShowEmergencyContacts),
		uiTool[contactArgs]("call_emergency_contact",
			"Initiate a call to a specific emergency contact. Use when the user explicitly says \"call my [person]\".",
			CallEmergencyContact),
	}
}
