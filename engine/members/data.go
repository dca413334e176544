package members

import "github.com/OireachtasAI/oireachtas-mvp/engine/domain"

// defaultMembers is the bundled registry used when no members file is
// configured. It covers the members most likely to be queried; the corpus is
// historical, so recent past members stay in the list. Override or extend it
// with MEMBERS_PATH.
var defaultMembers = []domain.Member{
	// Fianna Fáil
	{Name: "Micheál Martin", Party: "Fianna Fáil", House: "dail", Constituency: "Cork South-Central"},
	{Name: "Jack Chambers", Party: "Fianna Fáil", House: "dail", Constituency: "Dublin West"},
	{Name: "Darragh O'Brien", Party: "Fianna Fáil", House: "dail", Constituency: "Dublin Fingal East"},
	{Name: "Norma Foley", Party: "Fianna Fáil", House: "dail", Constituency: "Kerry"},
	{Name: "Willie O'Dea", Party: "Fianna Fáil", House: "dail", Constituency: "Limerick City"},
	{Name: "Éamon Ó Cuív", Party: "Fianna Fáil", House: "dail", Constituency: "Galway West"},
	{Name: "Barry Cowen", Party: "Fianna Fáil", House: "dail", Constituency: "Offaly"},
	{Name: "Jim O'Callaghan", Party: "Fianna Fáil", House: "dail", Constituency: "Dublin Bay South"},
	{Name: "Dara Calleary", Party: "Fianna Fáil", House: "dail", Constituency: "Mayo"},
	{Name: "Seán Ó Fearghaíl", Party: "Fianna Fáil", House: "dail", Constituency: "Kildare South"},

	// Fine Gael
	{Name: "Simon Harris", Party: "Fine Gael", House: "dail", Constituency: "Wicklow"},
	{Name: "Leo Varadkar", Party: "Fine Gael", House: "dail", Constituency: "Dublin West"},
	{Name: "Paschal Donohoe", Party: "Fine Gael", House: "dail", Constituency: "Dublin Central"},
	{Name: "Helen McEntee", Party: "Fine Gael", House: "dail", Constituency: "Meath East"},
	{Name: "Heather Humphreys", Party: "Fine Gael", House: "dail", Constituency: "Cavan-Monaghan"},
	{Name: "Peter Burke", Party: "Fine Gael", House: "dail", Constituency: "Longford-Westmeath"},
	{Name: "Simon Coveney", Party: "Fine Gael", House: "dail", Constituency: "Cork South-Central"},
	{Name: "Richard Bruton", Party: "Fine Gael", House: "dail", Constituency: "Dublin Bay North"},

	// Sinn Féin
	{Name: "Mary Lou McDonald", Party: "Sinn Féin", House: "dail", Constituency: "Dublin Central"},
	{Name: "Pearse Doherty", Party: "Sinn Féin", House: "dail", Constituency: "Donegal"},
	{Name: "Eoin Ó Broin", Party: "Sinn Féin", House: "dail", Constituency: "Dublin Mid-West"},
	{Name: "David Cullinane", Party: "Sinn Féin", House: "dail", Constituency: "Waterford"},
	{Name: "Louise O'Reilly", Party: "Sinn Féin", House: "dail", Constituency: "Dublin Fingal West"},
	{Name: "Matt Carthy", Party: "Sinn Féin", House: "dail", Constituency: "Cavan-Monaghan"},
	{Name: "Donnchadh Ó Laoghaire", Party: "Sinn Féin", House: "dail", Constituency: "Cork South-Central"},
	{Name: "Claire Kerrane", Party: "Sinn Féin", House: "dail", Constituency: "Roscommon-Galway"},

	// Green Party
	{Name: "Eamon Ryan", Party: "Green Party", House: "dail", Constituency: "Dublin Bay South"},
	{Name: "Catherine Martin", Party: "Green Party", House: "dail", Constituency: "Dublin Rathdown"},
	{Name: "Roderic O'Gorman", Party: "Green Party", House: "dail", Constituency: "Dublin West"},

	// Labour Party
	{Name: "Ivana Bacik", Party: "Labour Party", House: "dail", Constituency: "Dublin Bay South"},
	{Name: "Alan Kelly", Party: "Labour Party", House: "dail", Constituency: "Tipperary North"},
	{Name: "Ged Nash", Party: "Labour Party", House: "dail", Constituency: "Louth"},
	{Name: "Aodhán Ó Ríordáin", Party: "Labour Party", House: "dail", Constituency: "Dublin Bay North"},

	// Social Democrats
	{Name: "Holly Cairns", Party: "Social Democrats", House: "dail", Constituency: "Cork South-West"},
	{Name: "Cian O'Callaghan", Party: "Social Democrats", House: "dail", Constituency: "Dublin Bay North"},
	{Name: "Gary Gannon", Party: "Social Democrats", House: "dail", Constituency: "Dublin Central"},
	{Name: "Jennifer Whitmore", Party: "Social Democrats", House: "dail", Constituency: "Wicklow"},

	// People Before Profit-Solidarity
	{Name: "Richard Boyd Barrett", Party: "People Before Profit-Solidarity", House: "dail", Constituency: "Dún Laoghaire"},
	{Name: "Paul Murphy", Party: "People Before Profit-Solidarity", House: "dail", Constituency: "Dublin South-West"},
	{Name: "Bríd Smith", Party: "People Before Profit-Solidarity", House: "dail", Constituency: "Dublin South-Central"},

	// Aontú
	{Name: "Peadar Tóibín", Party: "Aontú", House: "dail", Constituency: "Meath West"},

	// Independents
	{Name: "Michael Lowry", Party: "Independent", House: "dail", Constituency: "Tipperary North"},
	{Name: "Mattie McGrath", Party: "Independent", House: "dail", Constituency: "Tipperary South"},
	{Name: "Michael Healy-Rae", Party: "Independent", House: "dail", Constituency: "Kerry"},
	{Name: "Danny Healy-Rae", Party: "Independent", House: "dail", Constituency: "Kerry"},
	{Name: "Catherine Connolly", Party: "Independent", House: "dail", Constituency: "Galway West"},
	{Name: "Thomas Pringle", Party: "Independent", House: "dail", Constituency: "Donegal"},

	// Seanad
	{Name: "Michael McDowell", Party: "Independent", House: "seanad"},
	{Name: "Lynn Ruane", Party: "Independent", House: "seanad"},
	{Name: "Alice-Mary Higgins", Party: "Independent", House: "seanad"},
	{Name: "Regina Doherty", Party: "Fine Gael", House: "seanad"},
	{Name: "Fiona O'Loughlin", Party: "Fianna Fáil", House: "seanad"},
	{Name: "Frances Black", Party: "Independent", House: "seanad"},
}
